package types

// Profile gates how much semi-structured data the row encoder retains.
type Profile string

const (
	// ProfileStandard retains only a reduced set of comment kinds and
	// nulls out features/db_references/evidence.
	ProfileStandard Profile = "standard"
	// ProfileFull retains all four JSON columns.
	ProfileFull Profile = "full"
)

// StandardCommentKinds are the comment "type" attribute values kept in
// comments_data under ProfileStandard.
var StandardCommentKinds = map[string]bool{
	"function":             true,
	"disease":              true,
	"subcellular location": true,
}

// Valid reports whether p is one of the two known profiles.
func (p Profile) Valid() bool {
	return p == ProfileStandard || p == ProfileFull
}
