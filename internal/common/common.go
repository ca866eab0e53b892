package common

import "errors"

// ErrNotPermitted is what callers report when a deletion is refused.
var ErrNotPermitted = errors.New("you may only delete text you wrote")

// message types, each frame carries one of these in Type
const (
	Edit  = "edit"
	Load  = "load"
	Clear = "clear"

	Seed     = "seed"
	Update   = "update"
	Rejected = "rejected"
	Error    = "error"
)

// ActorId identifies one connection for its lifetime.
type ActorId string

// Range attributes the characters [Start, End) of a document to Owner.
// Offsets count Unicode code points, not bytes.
type Range struct {
	Start int     `json:"start" bson:"start"`
	End   int     `json:"end" bson:"end"`
	Owner ActorId `json:"owner" bson:"owner"`
}

func (r Range) Len() int {
	return r.End - r.Start
}

// RangeSet is kept sorted by Start with pairwise disjoint ranges.
// Gaps are text with no recorded owner.
type RangeSet []Range

// Request is sent from client to server. Base and Ranges are only set
// for Edit, Base being the content the edit was made against. Content is
// empty for Clear.
type Request struct {
	Type    string   `json:"type"`
	RoomId  string   `json:"roomId"`
	Base    string   `json:"base"`
	Content string   `json:"content"`
	Ranges  RangeSet `json:"ranges,omitempty"`
}

// Response is sent from server to client.
type Response struct {
	Type    string   `json:"type"`
	Content string   `json:"content"`
	Ranges  RangeSet `json:"ranges"`

	// seed only
	IsOwner bool    `json:"isOwner,omitempty"`
	ActorId ActorId `json:"actorId,omitempty"`
	OwnerId ActorId `json:"ownerId,omitempty"`

	// rejected and error
	Message string `json:"message,omitempty"`
}
