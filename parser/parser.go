package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/cgerrors"
)

// Parse compiles OpenCypher source text into an *ast.Query. The returned
// tree borrows string slices from src for its entire lifetime (spec §3.2);
// callers must keep src alive for as long as the AST is used.
func Parse(src string) (*ast.Query, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, cgerrors.ErrParse.New(err.Error())
	}
	p := &parser{src: src, toks: toks}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input at %q", p.cur().text)
	}
	return q, nil
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) errorf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	tok := p.cur()
	span := &cgerrors.Span{Start: tok.pos, End: tok.pos + len(tok.text), Text: tok.text}
	return cgerrors.Wrap("", "parser", cgerrors.ErrParse.New(msg), span)
}

// isKeyword reports whether the current token is the given keyword,
// case-insensitively matched already by the lexer (keywords are normalized
// to upper case at lex time).
func (p *parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokKeyword && t.text == kw
}

func (p *parser) isPunct(s string) bool {
	t := p.cur()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptPunct(s string) bool {
	if p.isPunct(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) error {
	if !p.acceptPunct(s) {
		return p.errorf("expected %q", s)
	}
	return nil
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorf("expected %q", kw)
	}
	return nil
}

// ---- Query ----

func (p *parser) parseQuery() (*ast.Query, error) {
	q, err := p.parseSingleQuery()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("UNION") || p.isKeyword("UNION ALL") {
		kind := ast.UnionDistinct
		if p.isKeyword("UNION ALL") {
			kind = ast.UnionAll
		}
		p.pos++
		right, err := p.parseSingleQuery()
		if err != nil {
			return nil, err
		}
		q = &ast.Query{Union: &ast.UnionClause{Kind: kind, Left: q, Right: right}}
	}
	return q, nil
}

func (p *parser) parseSingleQuery() (*ast.Query, error) {
	q := &ast.Query{}
	for {
		switch {
		case p.isKeyword("OPTIONAL MATCH"):
			p.pos++
			rc, err := p.parseMatchBody(ast.ClauseOptionalMatch)
			if err != nil {
				return nil, err
			}
			q.ReadingClauses = append(q.ReadingClauses, *rc)
		case p.isKeyword("MATCH"):
			p.pos++
			rc, err := p.parseMatchBody(ast.ClauseMatch)
			if err != nil {
				return nil, err
			}
			q.ReadingClauses = append(q.ReadingClauses, *rc)
		case p.isKeyword("UNWIND"):
			p.pos++
			rc, err := p.parseUnwind()
			if err != nil {
				return nil, err
			}
			q.ReadingClauses = append(q.ReadingClauses, *rc)
		case p.isKeyword("WITH"):
			p.pos++
			w, err := p.parseWith()
			if err != nil {
				return nil, err
			}
			q.With = w
			next, err := p.parseSingleQuery()
			if err != nil {
				return nil, err
			}
			w.Next = next
			return q, nil
		case p.isKeyword("RETURN"):
			p.pos++
			r, err := p.parseReturn()
			if err != nil {
				return nil, err
			}
			q.Return = r
			return q, nil
		default:
			return nil, p.errorf("expected a reading clause, WITH, or RETURN")
		}
	}
}

func (p *parser) parseMatchBody(kind ast.ReadingClauseKind) (*ast.ReadingClause, error) {
	rc := &ast.ReadingClause{Kind: kind}
	for {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		rc.Patterns = append(rc.Patterns, *pat)
		if !p.acceptPunct(",") {
			break
		}
	}
	if p.acceptKeyword("WHERE") {
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		rc.Where = where
	}
	return rc, nil
}

func (p *parser) parseUnwind() (*ast.ReadingClause, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	return &ast.ReadingClause{Kind: ast.ClauseUnwind, UnwindExpr: expr, UnwindAs: name}, nil
}

func (p *parser) parseWith() (*ast.With, error) {
	w := &ast.With{}
	if p.acceptKeyword("DISTINCT") {
		w.Distinct = true
	}
	if p.acceptPunct("*") {
		w.Star = true
	} else {
		items, err := p.parseProjectionItems()
		if err != nil {
			return nil, err
		}
		w.Items = items
	}
	if p.acceptKeyword("WHERE") {
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		w.Where = where
	}
	if err := p.parseModifiers(&w.OrderBy, &w.Skip, &w.Limit); err != nil {
		return nil, err
	}
	return w, nil
}

func (p *parser) parseReturn() (*ast.Return, error) {
	r := &ast.Return{}
	if p.acceptKeyword("DISTINCT") {
		r.Distinct = true
	}
	if p.acceptPunct("*") {
		r.Star = true
	} else {
		items, err := p.parseProjectionItems()
		if err != nil {
			return nil, err
		}
		r.Items = items
	}
	if err := p.parseModifiers(&r.OrderBy, &r.Skip, &r.Limit); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *parser) parseModifiers(orderBy *[]ast.SortItem, skip, limit *ast.Expression) error {
	if p.isKeyword("ORDER BY") {
		p.pos++
		for {
			e, err := p.parseExpression()
			if err != nil {
				return err
			}
			desc := false
			if p.acceptKeyword("DESC") || p.acceptKeyword("DESCENDING") {
				desc = true
			} else {
				p.acceptKeyword("ASC")
				p.acceptKeyword("ASCENDING")
			}
			*orderBy = append(*orderBy, ast.SortItem{Expr: e, Descending: desc})
			if !p.acceptPunct(",") {
				break
			}
		}
	}
	if p.acceptKeyword("SKIP") {
		e, err := p.parseExpression()
		if err != nil {
			return err
		}
		*skip = e
	}
	if p.acceptKeyword("LIMIT") {
		e, err := p.parseExpression()
		if err != nil {
			return err
		}
		*limit = e
	}
	return nil
}

func (p *parser) parseProjectionItems() ([]ast.ProjectionItem, error) {
	var items []ast.ProjectionItem
	for {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		alias := ""
		if p.acceptKeyword("AS") {
			alias, err = p.parseIdent()
			if err != nil {
				return nil, err
			}
		}
		items = append(items, ast.ProjectionItem{Expr: e, Alias: alias})
		if !p.acceptPunct(",") {
			break
		}
	}
	return items, nil
}

func (p *parser) parseIdent() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", p.errorf("expected identifier, got %q", t.text)
	}
	p.pos++
	return t.text, nil
}

// ---- Patterns ----

func (p *parser) parsePattern() (*ast.Pattern, error) {
	anchor, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pat := &ast.Pattern{Elements: []ast.PatternElement{{Node: anchor}}}

	hops := 0
	for p.isPunct("-") || p.isPunct("<") || p.isPunct("-[") || p.isPunct("<-") ||
		p.isPunct("--") || p.isPunct("-->") || p.isPunct("<--") {
		if hops >= maxChainDepth {
			return nil, p.errorf("pattern chain exceeds maximum length of %d hops (TooLarge)", maxChainDepth)
		}
		rel, to, err := p.parseRelAndNode()
		if err != nil {
			return nil, err
		}
		pat.Elements = append(pat.Elements, ast.PatternElement{Rel: rel, To: to})
		hops++
	}
	return pat, nil
}

func (p *parser) parseNodePattern() (*ast.NodePattern, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	n := &ast.NodePattern{}
	if p.cur().kind == tokIdent {
		name, _ := p.parseIdent()
		n.Name = name
	}
	for p.acceptPunct(":") {
		label, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		n.Labels = append(n.Labels, label)
	}
	if p.isPunct("{") {
		m, err := p.parseMapLiteral()
		if err != nil {
			return nil, err
		}
		n.Properties = m
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return n, nil
}

// parseRelAndNode parses one "-[...]->" / "<-[...]-" / "-[...]-" edge plus
// the node pattern that follows it. Direction is read directly from the
// arrowheads; the logical plan builder, not the parser, normalizes it into
// from/to (spec §4.2).
func (p *parser) parseRelAndNode() (*ast.RelationshipPattern, *ast.NodePattern, error) {
	// No-bracket forms: the lexer already combined the whole dash run into
	// one token when there is no "[...]" in between.
	switch {
	case p.acceptPunct("<--"):
		to, err := p.parseNodePattern()
		if err != nil {
			return nil, nil, err
		}
		return &ast.RelationshipPattern{Direction: ast.DirIn}, to, nil
	case p.acceptPunct("-->"):
		to, err := p.parseNodePattern()
		if err != nil {
			return nil, nil, err
		}
		return &ast.RelationshipPattern{Direction: ast.DirOut}, to, nil
	case p.acceptPunct("--"):
		to, err := p.parseNodePattern()
		if err != nil {
			return nil, nil, err
		}
		return &ast.RelationshipPattern{Direction: ast.DirUndirected}, to, nil
	}

	leftArrow := p.acceptPunct("<-")
	bracketOpened := false
	if !leftArrow {
		if p.acceptPunct("-[") {
			bracketOpened = true
		} else if !p.acceptPunct("-") {
			return nil, nil, p.errorf("expected relationship pattern")
		}
	}

	rel := &ast.RelationshipPattern{}

	if bracketOpened || p.acceptPunct("[") {
		if p.cur().kind == tokIdent {
			name, _ := p.parseIdent()
			rel.Name = name
		}
		if p.acceptPunct(":") {
			for {
				t, err := p.parseIdent()
				if err != nil {
					return nil, nil, err
				}
				rel.Types = append(rel.Types, t)
				if !p.acceptPunct("|") {
					break
				}
			}
		}
		if p.acceptPunct("*") {
			vl, err := p.parseVarLength()
			if err != nil {
				return nil, nil, err
			}
			rel.VarLength = vl
		}
		if p.isPunct("{") {
			m, err := p.parseMapLiteral()
			if err != nil {
				return nil, nil, err
			}
			rel.Properties = m
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, nil, err
		}
	}

	// Trailing dash/arrow closing the relationship pattern: "->" for an
	// out-arrow, a bare "-" otherwise (ambiguous between undirected and the
	// close of a "<-[...]-" in-arrow, resolved below by leftArrow).
	switch {
	case p.acceptPunct("->"):
		rel.Direction = ast.DirOut
	case p.acceptPunct("-"):
		if leftArrow {
			rel.Direction = ast.DirIn
		} else {
			rel.Direction = ast.DirUndirected
		}
	default:
		return nil, nil, p.errorf("unterminated relationship pattern")
	}

	to, err := p.parseNodePattern()
	if err != nil {
		return nil, nil, err
	}
	return rel, to, nil
}

func (p *parser) parseVarLength() (*ast.VariableLengthSpec, error) {
	vl := &ast.VariableLengthSpec{Unbounded: true}
	if p.cur().kind == tokInt {
		min, _ := strconv.Atoi(p.cur().text)
		p.pos++
		vl.Min = min
		vl.Max = min
		vl.Unbounded = false
	}
	if p.acceptPunct("..") {
		vl.Unbounded = true
		if p.cur().kind == tokInt {
			max, _ := strconv.Atoi(p.cur().text)
			p.pos++
			vl.Max = max
			vl.Unbounded = false
		}
	}
	return vl, nil
}

func (p *parser) parseMapLiteral() (*ast.MapLiteral, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	m := &ast.MapLiteral{}
	if !p.isPunct("}") {
		for {
			key, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			m.Keys = append(m.Keys, key)
			m.Values = append(m.Values, val)
			if !p.acceptPunct(",") {
				break
			}
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return m, nil
}

// ---- Expressions (precedence climbing) ----
// logical (OR > XOR > AND) < comparison < additive < multiplicative < unary
// < postfix, per spec §4.1.

func (p *parser) parseExpression() (ast.Expression, error) { return p.parseOr() }

func (p *parser) parseOr() (ast.Expression, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseXor() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("XOR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: "XOR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (ast.Expression, error) {
	if p.acceptKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true, "=~": true}

func (p *parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isKeyword("IS NOT NULL"):
			p.pos++
			left = &ast.IsNullCheck{Operand: left, Negated: true}
		case p.isKeyword("IS NULL"):
			p.pos++
			left = &ast.IsNullCheck{Operand: left, Negated: false}
		case p.isKeyword("NOT IN"):
			p.pos++
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.UnaryOp{Op: "NOT", Operand: &ast.BinaryOp{Op: "IN", Left: left, Right: right}}
		case p.isKeyword("IN"):
			p.pos++
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: "IN", Left: left, Right: right}
		case p.isKeyword("STARTS WITH"):
			p.pos++
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: "STARTS WITH", Left: left, Right: right}
		case p.isKeyword("ENDS WITH"):
			p.pos++
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: "ENDS WITH", Left: left, Right: right}
		case p.isKeyword("CONTAINS"):
			p.pos++
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: "CONTAINS", Left: left, Right: right}
		case p.cur().kind == tokPunct && comparisonOps[p.cur().text]:
			op := p.cur().text
			p.pos++
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: op, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := p.cur().text
		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") || p.isPunct("/") || p.isPunct("%") || p.isPunct("^") {
		op := p.cur().text
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expression, error) {
	if p.acceptPunct("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: "-", Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses property access chains, desugaring the temporal
// accessor form "x.date.year" into a call "year(x.date)" at parse time
// (spec §4.1).
func (p *parser) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.acceptPunct(".") {
		prop, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if isTemporalAccessor(prop) {
			expr = &ast.FunctionCall{Name: strings.ToLower(prop), Args: []ast.Expression{expr}}
		} else {
			expr = &ast.PropertyAccess{Subject: expr, Property: prop}
		}
	}
	return expr, nil
}

var temporalAccessors = map[string]bool{
	"year": true, "month": true, "day": true, "hour": true,
	"minute": true, "second": true, "weekday": true, "quarter": true,
}

func isTemporalAccessor(name string) bool { return temporalAccessors[strings.ToLower(name)] }

func (p *parser) parsePrimary() (ast.Expression, error) {
	t := p.cur()
	switch {
	case t.kind == tokParam:
		p.pos++
		return &ast.Parameter{Name: t.text}, nil
	case t.kind == tokInt:
		p.pos++
		v, _ := strconv.ParseInt(t.text, 10, 64)
		return &ast.Literal{Kind: ast.LitInt, Value: v}, nil
	case t.kind == tokFloat:
		p.pos++
		v, _ := strconv.ParseFloat(t.text, 64)
		return &ast.Literal{Kind: ast.LitFloat, Value: v}, nil
	case t.kind == tokString:
		p.pos++
		return &ast.Literal{Kind: ast.LitString, Value: t.text}, nil
	case p.isKeyword("TRUE"):
		p.pos++
		return &ast.Literal{Kind: ast.LitBool, Value: true}, nil
	case p.isKeyword("FALSE"):
		p.pos++
		return &ast.Literal{Kind: ast.LitBool, Value: false}, nil
	case p.isKeyword("NULL"):
		p.pos++
		return &ast.Literal{Kind: ast.LitNull}, nil
	case p.isKeyword("CASE"):
		return p.parseCase()
	case p.isKeyword("EXISTS"):
		return p.parseExists()
	case p.isPunct("("):
		p.pos++
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case p.isPunct("["):
		return p.parseListOrComprehension()
	case p.isPunct("{"):
		return p.parseMapLiteral()
	case t.kind == tokIdent:
		return p.parseIdentOrCall()
	default:
		return nil, p.errorf("unexpected token %q in expression", t.text)
	}
}

func (p *parser) parseIdentOrCall() (ast.Expression, error) {
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if p.acceptPunct("(") {
		call := &ast.FunctionCall{Name: name}
		if p.acceptKeyword("DISTINCT") {
			call.Distinct = true
		}
		if !p.isPunct(")") {
			for {
				if p.isPunct("*") { // count(*)
					p.pos++
					call.Args = append(call.Args, &ast.Variable{Name: "*"})
				} else {
					a, err := p.parseExpression()
					if err != nil {
						return nil, err
					}
					call.Args = append(call.Args, a)
				}
				if !p.acceptPunct(",") {
					break
				}
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return call, nil
	}
	return &ast.Variable{Name: name}, nil
}

func (p *parser) parseCase() (ast.Expression, error) {
	if err := p.expectKeyword("CASE"); err != nil {
		return nil, err
	}
	c := &ast.CaseExpr{}
	if !p.isKeyword("WHEN") {
		subj, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		c.Subject = subj
	}
	for p.acceptKeyword("WHEN") {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		res, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, ast.CaseWhen{Condition: cond, Result: res})
	}
	if p.acceptKeyword("ELSE") {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		c.Else = e
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *parser) parseExists() (ast.Expression, error) {
	if err := p.expectKeyword("EXISTS"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	pat, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	ep := &ast.ExistsPattern{Pattern: *pat}
	if p.acceptKeyword("WHERE") {
		w, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ep.Where = w
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return ep, nil
}

// parseListOrComprehension distinguishes "[1,2,3]" from
// "[x IN list WHERE pred | proj]" and "[(pattern) WHERE pred | proj]" by
// trying comprehension forms first with backtracking, falling back to a
// plain list literal (spec §4.1, parser-combinator backtracking style).
func (p *parser) parseListOrComprehension() (ast.Expression, error) {
	start := p.pos
	if pc, err := p.tryParsePatternComprehension(); err == nil {
		return pc, nil
	}
	p.pos = start

	if lc, err := p.tryParseListComprehension(); err == nil {
		return lc, nil
	}
	p.pos = start

	return p.parsePlainList()
}

func (p *parser) tryParsePatternComprehension() (ast.Expression, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	if !p.isPunct("(") {
		return nil, p.errorf("not a pattern comprehension")
	}
	pat, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	pc := &ast.PatternComprehension{Pattern: *pat}
	if p.acceptKeyword("WHERE") {
		w, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		pc.Filter = w
	}
	if p.acceptPunct("|") {
		proj, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		pc.Projection = proj
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return pc, nil
}

func (p *parser) tryParseListComprehension() (ast.Expression, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	if p.cur().kind != tokIdent {
		return nil, p.errorf("not a list comprehension")
	}
	name, _ := p.parseIdent()
	if !p.acceptKeyword("IN") {
		return nil, p.errorf("not a list comprehension")
	}
	source, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	lc := &ast.ListComprehension{Variable: name, Source: source}
	if p.acceptKeyword("WHERE") {
		w, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		lc.Filter = w
	}
	if p.acceptPunct("|") {
		proj, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		lc.Projection = proj
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return lc, nil
}

func (p *parser) parsePlainList() (ast.Expression, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	l := &ast.ListLiteral{}
	if !p.isPunct("]") {
		for {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, e)
			if !p.acceptPunct(",") {
				break
			}
		}
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return l, nil
}
