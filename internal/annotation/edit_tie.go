package annotation

import (
	"github.com/roach88/annotie/internal/record"
)

// TieInput describes a new tie. A nil Weight means record.DefaultTieWeight.
type TieInput struct {
	Start    int
	End      int
	Source   record.Endpoint
	Target   record.Endpoint
	Label    string
	Weight   *float64
	Directed bool
}

// AddTie creates a tie and returns its id. Both endpoints must resolve.
func (ed *Editor) AddTie(in TieInput) (string, record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	if err := checkSpan(in.Start, in.End); err != nil {
		return "", cs, err
	}
	if _, err := s.resolve(in.Source); err != nil {
		return "", cs, err
	}
	if _, err := s.resolve(in.Target); err != nil {
		return "", cs, err
	}
	weight := record.DefaultTieWeight
	if in.Weight != nil {
		weight = *in.Weight
	}

	t := &tieNode{
		id:       s.allocTieID(&cs),
		start:    in.Start,
		end:      in.End,
		source:   in.Source,
		target:   in.Target,
		label:    in.Label,
		weight:   weight,
		directed: in.Directed,
	}
	s.ties[t.id] = t
	s.linkTie(t)
	cs.Upsert(record.KindTie, t.id, record.Fields{
		"start":         t.start,
		"end":           t.end,
		"source_entity": t.source,
		"target_entity": t.target,
		"label":         t.label,
		"weight":        t.weight,
		"directed":      t.directed,
	})
	return t.id, cs, nil
}

// TieUpdate lists the tie fields to change; nil fields are kept.
type TieUpdate struct {
	Start    *int
	End      *int
	Source   *record.Endpoint
	Target   *record.Endpoint
	Label    *string
	Weight   *float64
	Directed *bool
}

// UpdateTie replaces the given fields of a tie. When an endpoint changes, the
// tie leaves the back-reference set of its old binding before it joins the
// new one, so it is never counted twice nor missing from both.
func (ed *Editor) UpdateTie(id string, upd TieUpdate) (record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	t, ok := s.ties[id]
	if !ok {
		return cs, notFound("ties", id)
	}
	start, end := t.start, t.end
	if upd.Start != nil {
		start = *upd.Start
	}
	if upd.End != nil {
		end = *upd.End
	}
	if err := checkSpan(start, end); err != nil {
		return cs, err
	}
	if upd.Source != nil {
		if _, err := s.resolve(*upd.Source); err != nil {
			return cs, err
		}
	}
	if upd.Target != nil {
		if _, err := s.resolve(*upd.Target); err != nil {
			return cs, err
		}
	}

	fields := record.Fields{}
	if upd.Start != nil {
		t.start = start
		fields["start"] = start
	}
	if upd.End != nil {
		t.end = end
		fields["end"] = end
	}
	if upd.Source != nil || upd.Target != nil {
		s.unlinkTie(t)
		if upd.Source != nil {
			t.source = *upd.Source
			fields["source_entity"] = t.source
		}
		if upd.Target != nil {
			t.target = *upd.Target
			fields["target_entity"] = t.target
		}
		s.linkTie(t)
	}
	if upd.Label != nil {
		t.label = *upd.Label
		fields["label"] = t.label
	}
	if upd.Weight != nil {
		t.weight = *upd.Weight
		fields["weight"] = t.weight
	}
	if upd.Directed != nil {
		t.directed = *upd.Directed
		fields["directed"] = t.directed
	}
	if len(fields) > 0 {
		cs.Upsert(record.KindTie, id, fields)
	}
	return cs, nil
}

// RemoveTie deletes a tie, unlinking it from whatever its endpoints are
// currently bound to.
func (ed *Editor) RemoveTie(id string) (record.ChangeSet, error) {
	return ed.RemoveTies([]string{id})
}

// RemoveTies deletes a batch of ties. An unknown id fails the whole batch.
func (ed *Editor) RemoveTies(ids []string) (record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	ties, err := s.lookupTies(ids)
	if err != nil {
		return cs, err
	}
	for _, t := range ties {
		s.deleteTie(t, &cs)
	}
	return cs, nil
}
