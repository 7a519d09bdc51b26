package queryfilter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/calderbay/fieldwork/internal/survey"
)

// FieldError reports one invalid query parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ParseError aggregates every invalid parameter in a request.
type ParseError struct {
	Fields []FieldError
}

func (e *ParseError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid filter: " + strings.Join(parts, "; ")
}

// queryParser collects typed values and field errors from URL query values.
// Keys consumed by a parse are tracked so leftovers can be rejected.
type queryParser struct {
	q    url.Values
	seen map[string]bool
	errs []FieldError
}

func newQueryParser(q url.Values) *queryParser {
	return &queryParser{q: q, seen: map[string]bool{}}
}

func (p *queryParser) addError(field, message string) {
	p.errs = append(p.errs, FieldError{Field: field, Message: message})
}

func (p *queryParser) raw(key string) string {
	p.seen[key] = true
	return strings.TrimSpace(p.q.Get(key))
}

func (p *queryParser) stringField(key string) string {
	return p.raw(key)
}

func (p *queryParser) choiceField(key string, allowed ...string) string {
	v := p.raw(key)
	if v == "" {
		return ""
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	p.addError(key, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")))
	return ""
}

func (p *queryParser) int64Field(key string) *int64 {
	v := p.raw(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.addError(key, "must be an integer")
		return nil
	}
	return &n
}

func (p *queryParser) boolField(key string) *bool {
	v := p.raw(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.addError(key, "must be true or false")
		return nil
	}
	return &b
}

// timeField accepts a bare date (midnight UTC) or an RFC 3339 timestamp.
func (p *queryParser) timeField(key string) *time.Time {
	v := p.raw(key)
	if v == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t
	}
	p.addError(key, "must be YYYY-MM-DD or RFC 3339")
	return nil
}

// finish rejects query keys no field consumed and returns the
// accumulated errors, if any.
func (p *queryParser) finish() error {
	for key := range p.q {
		if !p.seen[key] {
			p.addError(key, "unknown parameter")
		}
	}
	if len(p.errs) == 0 {
		return nil
	}
	return &ParseError{Fields: p.errs}
}

// ParsePage reads page/page_size and clamps them to valid bounds.
func ParsePage(q url.Values) (Page, error) {
	p := newQueryParser(q)
	page := DefaultPage()
	if n := p.int64Field("page"); n != nil {
		page.Number = int(*n)
	}
	if n := p.int64Field("page_size"); n != nil {
		page.Size = int(*n)
	}
	// Other keys belong to the entity filter parsed alongside.
	if len(p.errs) > 0 {
		return page, &ParseError{Fields: p.errs}
	}
	return page.Clamp(), nil
}

// pageKeys marks the pagination parameters consumed before filter parsing.
func (p *queryParser) pageKeys() {
	p.seen["page"] = true
	p.seen["page_size"] = true
}

func ParseTransectFilter(q url.Values) (TransectFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := TransectFilter{
		StartDate:  p.timeField("start_date"),
		EndDate:    p.timeField("end_date"),
		State:      p.stringField("state"),
		TemplateID: p.stringField("template"),
	}
	return f, p.finish()
}

func ParseOccurrenceFilter(q url.Values) (OccurrenceFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := OccurrenceFilter{
		StartDate:        p.timeField("start_date"),
		EndDate:          p.timeField("end_date"),
		State:            p.stringField("state"),
		TransectUID:      p.int64Field("transect"),
		OccurrenceNumber: p.int64Field("occurrence_number"),
	}
	return f, p.finish()
}

func ParseWorkflowFilter(q url.Values) (WorkflowFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := WorkflowFilter{
		OccurrenceID:       p.int64Field("occurrence"),
		TemplateWorkflowID: p.stringField("template_workflow"),
		CompletedBy:        p.stringField("completed_by"),
		InstanceNumber:     p.int64Field("instance_number"),
	}
	return f, p.finish()
}

func ParseTemplateTransectFilter(q url.Values) (TemplateTransectFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := TemplateTransectFilter{
		ScheduledAfter:  p.timeField("scheduled_after"),
		ScheduledBefore: p.timeField("scheduled_before"),
		Name:            p.stringField("name"),
	}
	return f, p.finish()
}

func ParseTemplateWorkflowFilter(q url.Values) (TemplateWorkflowFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := TemplateWorkflowFilter{
		Name:        p.stringField("name"),
		AddedAfter:  p.timeField("added_after"),
		AddedBefore: p.timeField("added_before"),
	}
	return f, p.finish()
}

func ParseQuestionFilter(q url.Values) (QuestionFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := QuestionFilter{
		WorkflowID:   p.stringField("workflow"),
		DataTypeID:   p.stringField("data_type"),
		Prompt:       p.stringField("prompt"),
		DataTypeName: p.stringField("data_type_name"),
	}
	return f, p.finish()
}

func ParseDataTypeFilter(q url.Values) (DataTypeFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := DataTypeFilter{
		Name:           p.stringField("name"),
		IsUserDataType: p.boolField("is_user_data_type"),
	}
	return f, p.finish()
}

func ParseDataTypeOptionFilter(q url.Values) (DataTypeOptionFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := DataTypeOptionFilter{
		DataTypeID: p.stringField("data_type"),
		Code:       p.stringField("code"),
		Text:       p.stringField("text"),
	}
	return f, p.finish()
}

func ParseProjectConfigFilter(q url.Values) (ProjectConfigFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := ProjectConfigFilter{
		PublishedAfter:  p.timeField("published_after"),
		PublishedBefore: p.timeField("published_before"),
		Project:         p.stringField("project"),
	}
	return f, p.finish()
}

func ParseDataLogFilter(q url.Values) (DataLogFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := DataLogFilter{
		UploadedAfter:  p.timeField("uploaded_after"),
		UploadedBefore: p.timeField("uploaded_before"),
		UploadedBy:     p.stringField("uploaded_by"),
	}
	return f, p.finish()
}

func ParseTransectDataLogFilter(q url.Values) (TransectDataLogFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := TransectDataLogFilter{
		DataLogFileID: p.int64Field("data_log_file"),
		TransectUID:   p.int64Field("transect"),
		IsPrimary:     p.boolField("is_primary"),
		Username:      p.stringField("username"),
	}
	return f, p.finish()
}

func ParseHistoryFilter(q url.Values) (HistoryFilter, error) {
	p := newQueryParser(q)
	p.pageKeys()
	f := HistoryFilter{
		Entity:     p.choiceField("entity", survey.AuditedEntities...),
		EntityKey:  p.stringField("key"),
		ChangeType: p.choiceField("change_type", survey.ChangeCreate, survey.ChangeUpdate, survey.ChangeDelete),
		ChangedBy:  p.stringField("changed_by"),
		Since:      p.timeField("since"),
		Until:      p.timeField("until"),
	}
	return f, p.finish()
}
