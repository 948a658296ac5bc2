// Package snapshot stores rendered trees by name.
//
// Trees are stored as treedoc YAML documents, so a snapshot can be read back
// with treedoc.ParseFile or edited by hand. Two backends are provided:
//
//   - DiskStore: one file per snapshot in a directory, written atomically
//   - S3Store: one object per snapshot under a key prefix
//
// Missing snapshots are reported as E030 errors wrapping ErrNotFound; other
// failures are E031.
//
//	store, err := snapshot.NewDiskStore(".vdiff/snapshots")
//	if err != nil {
//	    return err
//	}
//	err = store.Save(ctx, "todo", mount.Current().Node())
package snapshot
