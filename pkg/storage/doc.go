// Package storage manages the local staging area.
//
// Every entity is staged under {root}/{entity}/ with exactly two members:
// profile_info.json and profile_pic.jpg. Prepare always starts from an empty
// directory, so a failed run never leaves stale members that a later sync
// would upload.
//
//	mgr, _ := storage.NewManager("dados", log)
//	dir, err := mgr.Prepare("nasa")
//	_, err = mgr.WriteMetadata(dir, rec)
//	_, err = mgr.StoreAsset(downloadedPath, dir)
package storage
