package yak

// ID is a content id as a fixed 32-byte opaque.
type ID [32]byte

// ReplyHeader leads every reply body.
type ReplyHeader struct {
	Status  Status
	Message string
}

// Tree entry kinds
const (
	EntryFile     = 0
	EntryTree     = 1
	EntrySymlink  = 2
	EntryConflict = 3
)

type File struct {
	Content []byte
}

type Symlink struct {
	Target string
}

// TreeEntry is the tagged tree entry. Executable is only read for
// EntryFile.
type TreeEntry struct {
	Kind       uint32
	ID         ID
	Executable bool
}

type TreeEntryMapping struct {
	Name  string
	Entry TreeEntry
}

type Tree struct {
	Entries []TreeEntryMapping
}

type Timestamp struct {
	MillisSinceEpoch int64
	TZOffset         int32
}

type Signature struct {
	Name      string
	Email     string
	Timestamp Timestamp
}

// Commit carries each optional signature as a presence flag and a value.
type Commit struct {
	Parents                []ID
	Predecessors           []ID
	RootTree               ID
	UsesTreeConflictFormat bool
	ChangeID               []byte
	Description            string
	HasAuthor              bool
	Author                 Signature
	HasCommitter           bool
	Committer              Signature
}

// IDArgs names an object to read. IDResult returns the id of a written one.
type IDArgs struct {
	ID ID
}

type IDResult struct {
	ID ID
}

type InitializeArgs struct {
	Path string
}

type InitializeResult struct {
	Workspace string
	MountID   string
	Host      string
	Port      uint32
}

type ConcurrencyResult struct {
	MaxInFlight uint32
}

// WorkspaceArgs names a workspace by the path given to INITIALIZE.
type WorkspaceArgs struct {
	Workspace string
}

type PathEntry struct {
	Path  string
	Entry TreeEntry
}

// CheckoutState is the checkout of a workspace. A zero RootTree is built
// from Entries; HasEntries false means the entries are read from RootTree.
type CheckoutState struct {
	OperationID []byte
	RootTree    ID
	HasEntries  bool
	Entries     []PathEntry
}

type CheckoutStateResult struct {
	Workspace string
	State     CheckoutState
}

type SetCheckoutStateArgs struct {
	Workspace string
	State     CheckoutState
}

type TreeStateResult struct {
	RootTree   ID
	DirtyPaths []string
	Mounted    bool
	Host       string
	Port       uint32
}

type MountInfo struct {
	Workspace string
	MountID   string
	Host      string
	Port      uint32
	State     string
}

type DaemonStatusResult struct {
	Version       string
	UptimeSeconds uint64
	Files         uint64
	Symlinks      uint64
	Trees         uint64
	Commits       uint64
	Workspaces    uint32
	Mounts        []MountInfo
}
