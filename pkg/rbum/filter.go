package rbum

// BasicFilterReq is the common filter embedded by every RBUM list/count
// query: scope-aware visibility plus the ubiquitous own_paths/id/code/name
// predicates used across the kernel's generic CRUD.
type BasicFilterReq struct {
	OwnPaths      string
	WithSubOwnPaths bool
	IDs           []string
	Code          string
	Name          string
	NameLike      string
	Disabled      *bool
	RelRbumKindID string
	RelRbumDomainID string
}

// ItemRelFilterReq narrows a query by the rel graph: "items related to
// RelRbumID via rels tagged Tag, travelling in Dir direction".
type ItemRelFilterReq struct {
	Tag       string
	FromRbumKind RelRbumKind
	RelRbumID string
	Dir       RelDirection
}

// RelDirection is which side of an RbumRel the filter anchors on.
type RelDirection string

const (
	// RelDirFrom finds items that are the "to" side of rels whose "from" is RelRbumID.
	RelDirFrom RelDirection = "from"
	// RelDirTo finds items that are the "from" side of rels whose "to" is RelRbumID.
	RelDirTo RelDirection = "to"
)

// SetItemRelFilterReq narrows a set-item query to a subtree of the
// organization tree, addressed by sys_code prefix.
type SetItemRelFilterReq struct {
	RelRbumSetID string
	SysCodePrefix string
	RelRbumItemID string
}

// CertFilterReq narrows a cert query by kind/supplier/status and the
// anchor it is bound to.
type CertFilterReq struct {
	Kind        string
	Supplier    string
	Status      CertStatus
	RelRbumKind RelRbumKind
	RelRbumID   string
	Ak          string
}
