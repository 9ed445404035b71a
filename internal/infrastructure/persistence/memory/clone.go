package memory

import "github.com/brightpath/screening-lifecycle/internal/domain/entity"

// Clones keep stored entities isolated from caller mutation: every read
// and write passes through a deep copy.

func cloneScreening(s *entity.Screening) *entity.Screening {
	out := *s
	if s.Responses != nil {
		out.Responses = make(map[string]string, len(s.Responses))
		for k, v := range s.Responses {
			out.Responses[k] = v
		}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func cloneConsent(c *entity.ConsentRecord) *entity.ConsentRecord {
	out := *c
	if c.ResolvedOn != nil {
		t := *c.ResolvedOn
		out.ResolvedOn = &t
	}
	if c.ValidUntil != nil {
		t := *c.ValidUntil
		out.ValidUntil = &t
	}
	return &out
}

func cloneBatch(b *entity.ImportBatch) *entity.ImportBatch {
	out := *b
	if b.Rows != nil {
		out.Rows = make([]entity.ImportRow, len(b.Rows))
		copy(out.Rows, b.Rows)
	}
	return &out
}

func cloneStudent(s *entity.StudentRecord) *entity.StudentRecord {
	out := *s
	return &out
}

func cloneCase(c *entity.CaseFile) *entity.CaseFile {
	out := *c
	if c.Checklist != nil {
		out.Checklist = make(map[string]bool, len(c.Checklist))
		for k, v := range c.Checklist {
			out.Checklist[k] = v
		}
	}
	if c.ClosedAt != nil {
		t := *c.ClosedAt
		out.ClosedAt = &t
	}
	return &out
}
