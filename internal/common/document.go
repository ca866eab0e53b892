package common

// Document is the content of a room together with the provenance of
// every character in it.
type Document struct {
	Content string   `json:"content" bson:"content"`
	Ranges  RangeSet `json:"ranges" bson:"ranges"`
}

func NewDocument() Document {
	return Document{Ranges: RangeSet{}}
}

// Apply diffs the document against content and returns the document
// with its ranges carried across the edit made by actor.
func (d Document) Apply(content string, actor ActorId) (Document, Diff) {
	diff := Compute(d.Content, content)
	return Document{
		Content: content,
		Ranges:  Reconcile(d.Ranges, diff, actor),
	}, diff
}

// LoadDocument replaces all history: the whole text belongs to actor.
func LoadDocument(text string, actor ActorId) Document {
	n := Length(text)
	if n == 0 {
		return NewDocument()
	}
	return Document{
		Content: text,
		Ranges:  RangeSet{{Start: 0, End: n, Owner: actor}},
	}
}

// Received takes a document from a peer as is, only repairing ranges
// that are out of order, overlapping or past the end of the text.
func Received(content string, ranges RangeSet) Document {
	return Document{
		Content: content,
		Ranges:  ClipTo(Normalize(ranges), Length(content)),
	}
}

// Session is one editor's view of a room. It is not safe for concurrent
// use; local edits and remote updates must be applied one at a time.
type Session struct {
	actor  ActorId
	owner  ActorId
	policy Policy
	doc    Document
}

// NewSession starts from the seed the server sends on join.
func NewSession(seed Response, policy Policy) *Session {
	return &Session{
		actor:  seed.ActorId,
		owner:  seed.OwnerId,
		policy: policy,
		doc:    Received(seed.Content, seed.Ranges),
	}
}

func (s *Session) Actor() ActorId {
	return s.actor
}

func (s *Session) Owner() ActorId {
	return s.owner
}

func (s *Session) IsOwner() bool {
	return s.actor == s.owner
}

func (s *Session) Document() Document {
	return Document{
		Content: s.doc.Content,
		Ranges:  append(RangeSet{}, s.doc.Ranges...),
	}
}

// Local records an edit made in this editor and returns the document to
// send out.
func (s *Session) Local(content string) (Document, Diff) {
	doc, diff := s.doc.Apply(content, s.actor)
	s.doc = doc
	return s.Document(), diff
}

// Remote replaces the local state with a peer's.
func (s *Session) Remote(content string, ranges RangeSet) Document {
	s.doc = Received(content, ranges)
	return s.Document()
}

// Load replaces the document with text imported by this editor.
func (s *Session) Load(text string) Document {
	s.doc = LoadDocument(text, s.actor)
	return s.Document()
}

func (s *Session) CanDelete(start, end int) bool {
	return s.policy.CanDelete(s.doc.Ranges, start, end, s.actor, s.owner)
}
