package parser

import "strconv"

// Revision is the Engine.IO protocol revision spoken on the wire.
type Revision int

const (
	Revision3 Revision = 3
	Revision4 Revision = 4
)

func (r Revision) Valid() bool { return r == Revision3 || r == Revision4 }

func (r Revision) String() string { return strconv.Itoa(int(r)) }
