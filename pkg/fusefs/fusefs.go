// Package fusefs exposes a user's remote listing as a read-only FUSE
// mount. Directory reads drive the lazy folder loader: a folder's
// contents are fetched the first time it is listed, never again after.
// File content is not served here; downloads are requested out-of-band.
package fusefs

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"

	"github.com/filedash/filedash/pkg/client"
	"github.com/filedash/filedash/pkg/explorer"
	"github.com/filedash/filedash/pkg/logger"
	"github.com/filedash/filedash/pkg/models"
)

// Stats holds filesystem statistics.
type Stats struct {
	Lookups     atomic.Int64
	Readdirs    atomic.Int64
	FolderLoads atomic.Int64
	DeniedOpens atomic.Int64
}

// TreeFS is the FUSE filesystem over a remote listing.
type TreeFS struct {
	client  *client.Client
	session *explorer.Session
	stats   Stats
}

// NewTreeFS creates a filesystem for one user's listing. The client must
// already be authenticated.
func NewTreeFS(c *client.Client, userID int64) *TreeFS {
	return &TreeFS{
		client:  c,
		session: explorer.NewSession(c, userID),
	}
}

// Init fetches the root listing. Must be called before Mount.
func (t *TreeFS) Init(ctx context.Context) error {
	if err := t.session.Start(ctx); err != nil {
		return fmt.Errorf("fetch root listing: %w", err)
	}
	logger.Info("Listing loaded: %d entries", t.session.Loader().StoreLen())
	return nil
}

// Mount mounts the filesystem at the given path.
func (t *TreeFS) Mount(mountPoint string) (*gofuse.Server, error) {
	if err := os.MkdirAll(mountPoint, 0755); err != nil {
		return nil, fmt.Errorf("create mount point: %w", err)
	}

	root := &treeNode{fsys: t}

	opts := &fs.Options{
		MountOptions: gofuse.MountOptions{
			AllowOther: false,
			Debug:      false,
			FsName:     "filedash",
			Name:       "filedash",
		},
		UID: uint32(os.Getuid()),
		GID: uint32(os.Getgid()),
	}

	server, err := fs.Mount(mountPoint, root, opts)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	return server, nil
}

// GetStats returns filesystem statistics.
func (t *TreeFS) GetStats() *Stats {
	return &t.stats
}

// IsOnline returns true if the server is reachable.
func (t *TreeFS) IsOnline() bool {
	return t.client.IsOnline()
}

// treeNode represents a file or folder. The zero entry (ID 0) is the
// synthetic root holding the root-level entries.
type treeNode struct {
	fs.Inode

	fsys  *TreeFS
	entry models.Entry
}

var _ fs.InodeEmbedder = (*treeNode)(nil)
var _ fs.NodeGetattrer = (*treeNode)(nil)
var _ fs.NodeLookuper = (*treeNode)(nil)
var _ fs.NodeReaddirer = (*treeNode)(nil)
var _ fs.NodeOpener = (*treeNode)(nil)
var _ fs.NodeGetxattrer = (*treeNode)(nil)
var _ fs.NodeListxattrer = (*treeNode)(nil)

func (n *treeNode) isDir() bool {
	return n.entry.ID == 0 || n.entry.IsFolder
}

// ensureLoaded triggers a lazy contents fetch for folders that have not
// been listed yet. The loader guards against duplicate fetches.
func (n *treeNode) ensureLoaded(ctx context.Context) {
	if n.entry.ID == 0 {
		return
	}
	loader := n.fsys.session.Loader()
	if !loader.IsLoaded(n.entry.ID) {
		n.fsys.stats.FolderLoads.Add(1)
		loader.LoadFolder(ctx, n.entry.ID)
	}
}

func fillAttr(entry *models.Entry, out *gofuse.Attr) {
	if entry.ID == 0 || entry.IsFolder {
		out.Mode = 0755 | syscall.S_IFDIR
	} else {
		out.Mode = 0444 | syscall.S_IFREG
	}
	out.Size = uint64(entry.Size)
	if !entry.CreatedAt.IsZero() {
		mtime := uint64(entry.CreatedAt.Unix())
		out.Mtime = mtime
		out.Atime = mtime
		out.Ctime = mtime
	}
	out.Uid = uint32(os.Getuid())
	out.Gid = uint32(os.Getgid())
}

// Getattr returns attributes from the local index. It never fetches.
func (n *treeNode) Getattr(ctx context.Context, fh fs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	fillAttr(&n.entry, &out.Attr)
	return 0
}

// Lookup finds a child by name, loading the folder on first access.
func (n *treeNode) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !n.isDir() {
		return nil, syscall.ENOENT
	}
	n.fsys.stats.Lookups.Add(1)
	n.ensureLoaded(ctx)

	var childEntry *models.Entry
	for _, child := range n.fsys.session.Loader().Children(n.entry.ID) {
		if child.Name == name {
			e := child
			childEntry = &e
			break
		}
	}
	if childEntry == nil {
		return nil, syscall.ENOENT
	}

	child := &treeNode{fsys: n.fsys, entry: *childEntry}
	fillAttr(childEntry, &out.Attr)

	stableAttr := fs.StableAttr{Mode: out.Mode, Ino: uint64(childEntry.ID)}
	return n.NewInode(ctx, child, stableAttr), 0
}

// Readdir lists folder contents, loading them on first access.
func (n *treeNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	if !n.isDir() {
		return nil, syscall.ENOTDIR
	}
	n.fsys.stats.Readdirs.Add(1)
	n.ensureLoaded(ctx)

	children := n.fsys.session.Loader().Children(n.entry.ID)
	entries := make([]gofuse.DirEntry, 0, len(children))
	for _, child := range children {
		mode := uint32(syscall.S_IFREG)
		if child.IsFolder {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, gofuse.DirEntry{
			Name: child.Name,
			Mode: mode,
			Ino:  uint64(child.ID),
		})
	}
	return fs.NewListDirStream(entries), 0
}

// Open always denies access: content never travels through the mount.
func (n *treeNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if n.isDir() {
		return nil, 0, syscall.EISDIR
	}
	n.fsys.stats.DeniedOpens.Add(1)
	logger.Debug("Denied open for %s: content is delivered out-of-band", n.entry.Name)
	return nil, 0, syscall.EACCES
}

// Getxattr returns extended attribute value.
func (n *treeNode) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	var value string

	switch attr {
	case "user.filedash.id":
		value = fmt.Sprintf("%d", n.entry.ID)
	case "user.filedash.size":
		value = fmt.Sprintf("%d", n.entry.Size)
	case "user.filedash.loaded":
		if n.entry.ID == 0 || n.fsys.session.Loader().IsLoaded(n.entry.ID) {
			value = "true"
		} else {
			value = "false"
		}
	case "user.filedash.online":
		if n.fsys.client.IsOnline() {
			value = "true"
		} else {
			value = "false"
		}
	default:
		return 0, syscall.ENODATA
	}

	if len(dest) == 0 {
		return uint32(len(value)), 0
	}
	if len(dest) < len(value) {
		return 0, syscall.ERANGE
	}
	copy(dest, value)
	return uint32(len(value)), 0
}

// Listxattr lists extended attributes.
func (n *treeNode) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	attrs := []string{
		"user.filedash.id",
		"user.filedash.size",
		"user.filedash.loaded",
		"user.filedash.online",
	}

	var total int
	for _, attr := range attrs {
		total += len(attr) + 1
	}

	if len(dest) == 0 {
		return uint32(total), 0
	}
	if len(dest) < total {
		return 0, syscall.ERANGE
	}

	offset := 0
	for _, attr := range attrs {
		copy(dest[offset:], attr)
		offset += len(attr)
		dest[offset] = 0
		offset++
	}
	return uint32(total), 0
}
