package canonical

import "testing"

// countingVisitor records how many times each visit method fires.
type countingVisitor struct {
	keyword, text, number, date, location, boolean int
}

func (c *countingVisitor) VisitKeyword(*KeywordField, any) error   { c.keyword++; return nil }
func (c *countingVisitor) VisitText(*TextField, any) error         { c.text++; return nil }
func (c *countingVisitor) VisitNumber(*NumberField, any) error     { c.number++; return nil }
func (c *countingVisitor) VisitDate(*DateField, any) error         { c.date++; return nil }
func (c *countingVisitor) VisitLocation(*LocationField, any) error { c.location++; return nil }
func (c *countingVisitor) VisitBoolean(*BooleanField, any) error   { c.boolean++; return nil }

func (c *countingVisitor) total() int {
	return c.keyword + c.text + c.number + c.date + c.location + c.boolean
}

func TestAcceptDispatchesOncePerDeclaredType(t *testing.T) {
	tests := []struct {
		declared string
		count    func(*countingVisitor) int
	}{
		{TypeKeyword, func(c *countingVisitor) int { return c.keyword }},
		{TypeText, func(c *countingVisitor) int { return c.text }},
		{TypeNumber, func(c *countingVisitor) int { return c.number }},
		{TypeInteger, func(c *countingVisitor) int { return c.number }},
		{TypeLong, func(c *countingVisitor) int { return c.number }},
		{TypeFloat, func(c *countingVisitor) int { return c.number }},
		{TypeDouble, func(c *countingVisitor) int { return c.number }},
		{TypeDate, func(c *countingVisitor) int { return c.date }},
		{TypeGeoPoint, func(c *countingVisitor) int { return c.location }},
		{TypeBoolean, func(c *countingVisitor) int { return c.boolean }},
	}

	for _, tc := range tests {
		t.Run(tc.declared, func(t *testing.T) {
			f, err := buildField(0, rawField{Name: "f", Type: tc.declared})
			if err != nil {
				t.Fatalf("buildField: %v", err)
			}
			v := &countingVisitor{}
			if err := f.Accept(v, "value"); err != nil {
				t.Fatalf("Accept: %v", err)
			}
			if got := tc.count(v); got != 1 {
				t.Errorf("matching visit count = %d, want 1", got)
			}
			if v.total() != 1 {
				t.Errorf("total visits = %d, want exactly one method invoked", v.total())
			}
		})
	}
}
