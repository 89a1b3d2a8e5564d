package sheetgraph

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/exp/slices"
)

// Resolver resolves a Position to the double value a formula should see when
// it reads through that cell; Formula wraps Sheet lookups into a Resolver.
type Resolver func(Position) (float64, *FormulaError)

// AST is the façade the core evaluator consumes. Its concrete grammar and
// parser (below) are a narrow, fixed-surface collaborator per spec.md §1 —
// kept in-repo because no pack dependency matches this grammar without being
// either far larger (a full Excel-formula tokenizer) or semantically
// mismatched (a general expression-language engine with no native
// Ref/Value/Div0 error channel). See DESIGN.md.
type AST interface {
	// Evaluate executes the expression against resolver, returning a
	// FormulaError instead of a panic/exception for any failure.
	Evaluate(resolver Resolver) (float64, *FormulaError)
	// Print renders the canonical form of the expression.
	Print() string
	// ReferencedCells returns the positions mentioned in source order,
	// possibly with duplicates and possibly with invalid positions.
	ReferencedCells() []Position
}

// ParseExpr parses the text following the formula sentinel into an AST.
func ParseExpr(str string) (AST, error) {
	tokens, err := tokenize(str)
	if err != nil {
		return nil, err
	}
	expr, rest, err := parseExpr(tokens)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: unexpected trailing input", ErrParseFormula)
	}
	return expr, nil
}

// token is a lexical unit: an operator/paren literal, a numeric literal, or
// a cell-reference literal.
type token string

const (
	tokenAdd  token = "+"
	tokenSub  token = "-"
	tokenMul  token = "*"
	tokenDiv  token = "/"
	tokenLPar token = "("
	tokenRPar token = ")"
)

var runeMap = map[rune]token{
	'+': tokenAdd,
	'-': tokenSub,
	'*': tokenMul,
	'/': tokenDiv,
	'(': tokenLPar,
	')': tokenRPar,
}

// tokenize tokenizes str into a list of tokens, returning ErrParseFormula
// for any unexpected character.
func tokenize(str string) ([]token, error) {
	runes := []rune(str)
	var tokens []token
	for i := 0; i < len(runes); i++ {
		for i < len(runes) && runes[i] == ' ' { // skip whitespace
			i++
		}
		if i >= len(runes) {
			break
		}
		switch {
		case between(runes[i], '0', '9') || (runes[i] == '.' && i+1 < len(runes) && between(runes[i+1], '0', '9')):
			start := i
			sawDot := false
			for i < len(runes) && (between(runes[i], '0', '9') || (runes[i] == '.' && !sawDot)) {
				if runes[i] == '.' {
					sawDot = true
				}
				i++
			}
			tokens = append(tokens, token(runes[start:i]))
			i--
		case between(runes[i], 'A', 'Z') || between(runes[i], 'a', 'z'):
			start := i
			for i < len(runes) && (between(runes[i], '0', '9') || between(runes[i], 'A', 'Z') || between(runes[i], 'a', 'z')) {
				i++
			}
			tokens = append(tokens, token(runes[start:i]))
			i--
		default:
			if tok, ok := runeMap[runes[i]]; ok {
				tokens = append(tokens, tok)
			} else {
				return nil, fmt.Errorf("%w: unexpected character %q", ErrParseFormula, runes[i])
			}
		}
	}
	return tokens, nil
}

// between is true iff target lies between lb (lower bound) and ub (upper bound).
func between(target, lb, ub rune) bool {
	return lb <= target && target <= ub
}

// parseExpr parses out an entire expression.
func parseExpr(tokens []token) (AST, []token, error) {
	return parseTerm(tokens)
}

// parseTerm parses out addition and subtraction.
func parseTerm(tokens []token) (AST, []token, error) {
	termTokens := map[token]struct{}{tokenAdd: {}, tokenSub: {}}
	return parseBinExpr(tokens, termTokens, parseFactor)
}

// parseFactor parses out multiplication and division.
func parseFactor(tokens []token) (AST, []token, error) {
	factorTokens := map[token]struct{}{tokenMul: {}, tokenDiv: {}}
	return parseBinExpr(tokens, factorTokens, parseUnary)
}

// parseBinExpr parses a left-associative binary expression using the
// provided operator set, delegating to next for each operand.
func parseBinExpr(tokens []token, validOps map[token]struct{}, next func([]token) (AST, []token, error)) (AST, []token, error) {
	expr, rest, err := next(tokens)
	if err != nil {
		return nil, nil, err
	}
	if len(rest) == 0 {
		return expr, nil, nil
	}
	tok := rest[0]
	_, ok := validOps[tok]
	for ok {
		var y AST
		y, rest, err = next(rest[1:])
		if err != nil {
			return nil, nil, err
		}
		expr = binaryExpr{X: expr, Op: tok, Y: y}
		if len(rest) == 0 {
			break
		}
		tok = rest[0]
		_, ok = validOps[tok]
	}
	return expr, rest, nil
}

// parseUnary parses out unary minus.
func parseUnary(tokens []token) (AST, []token, error) {
	if len(tokens) == 0 {
		return nil, nil, fmt.Errorf("%w: expected terms; found nothing", ErrParseFormula)
	}
	if tokens[0] == tokenSub {
		x, rest, err := parseUnary(tokens[1:])
		if err != nil {
			return nil, nil, err
		}
		if c, ok := x.(constExpr); ok { // small optimization to shorten the tree
			return constExpr{Value: -c.Value}, rest, nil
		}
		return unaryExpr{X: x, Op: tokenSub}, rest, nil
	}
	return parsePrimary(tokens)
}

// parsePrimary parses out primary expressions: literals, cell refs,
// parenthesized terms.
func parsePrimary(tokens []token) (AST, []token, error) {
	if len(tokens) == 0 {
		return nil, nil, fmt.Errorf("%w: expected terms; found nothing", ErrParseFormula)
	}
	if tokens[0] == tokenLPar {
		expr, rest, err := parseExpr(tokens[1:])
		if err != nil {
			return nil, nil, err
		}
		if len(rest) == 0 || rest[0] != tokenRPar {
			return nil, nil, fmt.Errorf("%w: expected ')'", ErrParseFormula)
		}
		return expr, rest[1:], nil
	}
	if pos, err := ParsePosition(string(tokens[0])); err == nil {
		return cellRefExpr{Ref: pos}, tokens[1:], nil
	}
	if val, err := strconv.ParseFloat(string(tokens[0]), 64); err == nil {
		return constExpr{Value: val}, tokens[1:], nil
	}
	return nil, nil, fmt.Errorf("%w: unexpected token: %s", ErrParseFormula, tokens[0])
}

// the model used here for representing parse trees is inspired by the ast
// package in Go's standard library.

type unaryExpr struct {
	X  AST
	Op token
}

func (u unaryExpr) Evaluate(resolver Resolver) (float64, *FormulaError) {
	x, ferr := u.X.Evaluate(resolver)
	if ferr != nil {
		return 0, ferr
	}
	return -x, nil
}

func (u unaryExpr) Print() string { return "-" + printOperand(u.X, 2) }

func (u unaryExpr) ReferencedCells() []Position { return u.X.ReferencedCells() }

// binaryExpr represents a binary expression: an operator and two operands.
type binaryExpr struct {
	X  AST
	Op token
	Y  AST
}

func (b binaryExpr) Evaluate(resolver Resolver) (float64, *FormulaError) {
	x, ferr := b.X.Evaluate(resolver)
	if ferr != nil {
		return 0, ferr
	}
	y, ferr := b.Y.Evaluate(resolver)
	if ferr != nil {
		return 0, ferr
	}
	switch b.Op {
	case tokenAdd:
		return finite(x + y)
	case tokenSub:
		return finite(x - y)
	case tokenMul:
		return finite(x * y)
	case tokenDiv:
		if y == 0 {
			return 0, &FormulaError{Kind: Div0}
		}
		return finite(x / y)
	}
	return 0, &FormulaError{Kind: Value} // unreachable if ParseExpr produced this node
}

// finite rejects non-finite arithmetic results (overflow to Inf, or NaN)
// per spec.md §4.2: the AST's own arithmetic semantics must produce Value
// for non-finite results.
func finite(v float64) (float64, *FormulaError) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, &FormulaError{Kind: Value}
	}
	return v, nil
}

func (b binaryExpr) Print() string {
	prec := precedence(b.Op)
	left := printOperand(b.X, prec)
	right := printOperand(b.Y, prec+1) // +1: right operand of a same-precedence op still needs parens for - and /
	return left + string(b.Op) + right
}

func (b binaryExpr) ReferencedCells() []Position {
	return append(b.X.ReferencedCells(), b.Y.ReferencedCells()...)
}

// constExpr represents a constant valued expression.
type constExpr struct {
	Value float64
}

func (c constExpr) Evaluate(Resolver) (float64, *FormulaError) { return c.Value, nil }
func (c constExpr) Print() string                              { return strconv.FormatFloat(c.Value, 'g', -1, 64) }
func (c constExpr) ReferencedCells() []Position                { return nil }

// cellRefExpr represents a reference to another cell.
type cellRefExpr struct {
	Ref Position
}

func (r cellRefExpr) Evaluate(resolver Resolver) (float64, *FormulaError) { return resolver(r.Ref) }
func (r cellRefExpr) Print() string                                       { return r.Ref.String() }
func (r cellRefExpr) ReferencedCells() []Position                         { return []Position{r.Ref} }

// precedence ranks the four binary operators; higher binds tighter.
func precedence(op token) int {
	switch op {
	case tokenAdd, tokenSub:
		return 1
	case tokenMul, tokenDiv:
		return 2
	default:
		return 0
	}
}

// printOperand prints child, parenthesizing it iff its own precedence is
// lower than minPrec.
func printOperand(child AST, minPrec int) string {
	if b, ok := child.(binaryExpr); ok && precedence(b.Op) < minPrec {
		return "(" + b.Print() + ")"
	}
	if u, ok := child.(unaryExpr); ok && minPrec > 2 {
		return "(" + u.Print() + ")"
	}
	return child.Print()
}

// cellRefs retrieves the valid, de-duplicated, ascending cell references
// found in expr; used by formula.referencedCells (§4.2).
func cellRefs(expr AST, maxRows, maxCols int) []Position {
	raw := expr.ReferencedCells()
	seen := make(map[Position]struct{}, len(raw))
	var out []Position
	for _, pos := range raw {
		if !pos.Valid(maxRows, maxCols) {
			continue
		}
		if _, ok := seen[pos]; ok {
			continue
		}
		seen[pos] = struct{}{}
		out = append(out, pos)
	}
	sortPositions(out)
	return out
}

func sortPositions(positions []Position) {
	slices.SortFunc(positions, func(a, b Position) bool {
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
}
