package queryfilter

import "strings"

// WhereBuilder accumulates SQL conditions and their bound parameters.
// Conditions are joined with AND. Values are always parameterized.
type WhereBuilder struct {
	clauses []string
	params  []any
}

// Equals adds "col = ?".
func (b *WhereBuilder) Equals(col string, value any) {
	b.clauses = append(b.clauses, col+" = ?")
	b.params = append(b.params, value)
}

// AtLeast adds "col >= ?".
func (b *WhereBuilder) AtLeast(col string, value any) {
	b.clauses = append(b.clauses, col+" >= ?")
	b.params = append(b.params, value)
}

// AtMost adds "col <= ?".
func (b *WhereBuilder) AtMost(col string, value any) {
	b.clauses = append(b.clauses, col+" <= ?")
	b.params = append(b.params, value)
}

// Contains adds a case-insensitive substring match.
// LIKE metacharacters in the needle are escaped so they match literally.
func (b *WhereBuilder) Contains(col, needle string) {
	b.clauses = append(b.clauses, "LOWER("+col+") LIKE ? ESCAPE '\\'")
	b.params = append(b.params, "%"+escapeLike(strings.ToLower(needle))+"%")
}

// Raw adds a caller-built condition with its parameters.
// The condition must use ? placeholders for every value.
func (b *WhereBuilder) Raw(cond string, params ...any) {
	b.clauses = append(b.clauses, cond)
	b.params = append(b.params, params...)
}

// SQL returns " WHERE c1 AND c2 ..." or "" when no conditions were added.
func (b *WhereBuilder) SQL() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// Params returns the bound parameters in clause order.
func (b *WhereBuilder) Params() []any {
	return b.params
}

// escapeLike escapes %, _ and \ so they match literally in a LIKE pattern.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
