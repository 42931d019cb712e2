package files

import (
	"context"
	"errors"
	"testing"
)

func TestCreateFolderBuildsAncestorChain(t *testing.T) {
	store := newFakeStore(1 << 30)
	svc := newTestService(store, &fakeAdapter{provider: "google_drive"})

	root, err := svc.CreateFolder(context.Background(), 1, "docs", "")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if len(root.Ancestors) != 0 {
		t.Errorf("root ancestors = %v, want none", root.Ancestors)
	}

	child, err := svc.CreateFolder(context.Background(), 1, "reports", root.ID)
	if err != nil {
		t.Fatalf("CreateFolder child: %v", err)
	}
	grand, err := svc.CreateFolder(context.Background(), 1, "2026", child.ID)
	if err != nil {
		t.Fatalf("CreateFolder grandchild: %v", err)
	}

	if len(grand.Ancestors) != 2 {
		t.Fatalf("ancestors = %v, want 2 entries", grand.Ancestors)
	}
	if grand.Ancestors[0].ID != root.ID || grand.Ancestors[1].ID != child.ID {
		t.Errorf("ancestor order = %v, want root then parent", grand.Ancestors)
	}
	if grand.Ancestors[0].Name != "docs" {
		t.Errorf("ancestor name = %q", grand.Ancestors[0].Name)
	}
}

func TestCreateFolderValidation(t *testing.T) {
	svc := newTestService(newFakeStore(1<<30), &fakeAdapter{provider: "google_drive"})

	if _, err := svc.CreateFolder(context.Background(), 1, "  ", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name: %v, want ErrValidation", err)
	}
	if _, err := svc.CreateFolder(context.Background(), 1, "x", "no-such"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing parent: %v, want ErrNotFound", err)
	}
}

func TestTrashFolderCascades(t *testing.T) {
	store := newFakeStore(1 << 30)
	svc := newTestService(store, &coreAdapter{provider: "local_mock"})

	root, _ := svc.CreateFolder(context.Background(), 1, "docs", "")
	child, _ := svc.CreateFolder(context.Background(), 1, "inner", root.ID)
	seedFile(store, &File{ID: "f1", OwnerID: 1, Name: "a.txt", FolderID: root.ID, Provider: "local_mock"})
	seedFile(store, &File{ID: "f2", OwnerID: 1, Name: "b.txt", FolderID: child.ID, Provider: "local_mock"})

	if err := svc.TrashFolder(context.Background(), 1, root.ID); err != nil {
		t.Fatalf("TrashFolder: %v", err)
	}

	for _, id := range []string{root.ID, child.ID} {
		f, _ := store.GetFolder(context.Background(), id, 1)
		if !f.IsTrash {
			t.Errorf("folder %s not trashed", id)
		}
	}
	for _, id := range []string{"f1", "f2"} {
		f, _ := store.GetFile(context.Background(), id, 1)
		if !f.IsTrash {
			t.Errorf("file %s not trashed", id)
		}
	}

	if err := svc.RestoreFolder(context.Background(), 1, root.ID); err != nil {
		t.Fatalf("RestoreFolder: %v", err)
	}
	f, _ := store.GetFile(context.Background(), "f2", 1)
	if f.IsTrash {
		t.Error("nested file still trashed after restore")
	}
}

func TestPurgeFolderDeletesTree(t *testing.T) {
	store := newFakeStore(1 << 30)
	store.used = 2048
	adapter := &fakeAdapter{provider: "google_drive"}
	svc := newTestService(store, adapter)

	root, _ := svc.CreateFolder(context.Background(), 1, "docs", "")
	child, _ := svc.CreateFolder(context.Background(), 1, "inner", root.ID)
	seedFile(store, &File{ID: "f1", OwnerID: 1, Name: "a.txt", SizeKB: 1, FolderID: root.ID, Provider: "google_drive", ExternalID: "ext-1"})
	seedFile(store, &File{ID: "f2", OwnerID: 1, Name: "b.txt", SizeKB: 1, FolderID: child.ID, Provider: "google_drive", ExternalID: "ext-2"})

	result, err := svc.PurgeFolder(context.Background(), 1, root.ID)
	if err != nil {
		t.Fatalf("PurgeFolder: %v", err)
	}
	if result.Deleted != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 2 deleted", result)
	}

	if _, err := store.GetFolder(context.Background(), root.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Error("root folder row survived the purge")
	}
	if _, err := store.GetFolder(context.Background(), child.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Error("descendant folder row survived the purge")
	}
	if store.used != 0 {
		t.Errorf("used = %d, want 0", store.used)
	}
	if len(adapter.deleteCalls) != 2 {
		t.Errorf("provider deletes = %d, want 2", len(adapter.deleteCalls))
	}
}

func TestPurgeFolderKeepsTreeOnFailure(t *testing.T) {
	store := newFakeStore(1 << 30)
	adapter := &fakeAdapter{provider: "google_drive", deleteErr: errors.New("api down")}
	svc := newTestService(store, adapter)

	root, _ := svc.CreateFolder(context.Background(), 1, "docs", "")
	seedFile(store, &File{ID: "f1", OwnerID: 1, Name: "a.txt", SizeKB: 1, FolderID: root.ID, Provider: "google_drive", ExternalID: "ext-1"})
	seedFile(store, &File{ID: "f2", OwnerID: 1, Name: "b.txt", SizeKB: 1, FolderID: root.ID, Provider: "google_drive", ExternalID: "ext-2"})

	result, err := svc.PurgeFolder(context.Background(), 1, root.ID)
	if err != nil {
		t.Fatalf("PurgeFolder: %v", err)
	}
	if result.Failed != 2 || result.Deleted != 0 {
		t.Fatalf("result = %+v, want 2 failed", result)
	}
	if len(result.Errors) != 2 {
		t.Errorf("errors = %v", result.Errors)
	}

	// The tree stays so the purge can be retried.
	if _, err := store.GetFolder(context.Background(), root.ID, 1); err != nil {
		t.Error("folder row deleted despite failed files")
	}

	adapter.deleteErr = nil
	result, err = svc.PurgeFolder(context.Background(), 1, root.ID)
	if err != nil {
		t.Fatalf("retry PurgeFolder: %v", err)
	}
	if result.Deleted != 2 || result.Failed != 0 {
		t.Fatalf("retry result = %+v", result)
	}
	if _, err := store.GetFolder(context.Background(), root.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Error("folder row survived the retried purge")
	}
}

func TestPurgeFolderPartialFailure(t *testing.T) {
	store := newFakeStore(1 << 30)
	store.used = 2048
	adapter := &flakyAdapter{failOn: "ext-bad"}
	svc := newTestService(store, adapter)

	root, _ := svc.CreateFolder(context.Background(), 1, "docs", "")
	seedFile(store, &File{ID: "f1", OwnerID: 1, Name: "good.txt", SizeKB: 1, FolderID: root.ID, Provider: "google_drive", ExternalID: "ext-good"})
	seedFile(store, &File{ID: "f2", OwnerID: 1, Name: "bad.txt", SizeKB: 1, FolderID: root.ID, Provider: "google_drive", ExternalID: "ext-bad"})

	result, err := svc.PurgeFolder(context.Background(), 1, root.ID)
	if err != nil {
		t.Fatalf("PurgeFolder: %v", err)
	}
	if result.Deleted != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v, want 1/1", result)
	}

	// The good file is gone and its bytes freed even though the purge
	// as a whole is incomplete.
	if _, err := store.GetFile(context.Background(), "f1", 1); !errors.Is(err, ErrNotFound) {
		t.Error("deleted file still present")
	}
	if _, err := store.GetFile(context.Background(), "f2", 1); err != nil {
		t.Error("failed file dropped from metadata")
	}
	if store.used != 1024 {
		t.Errorf("used = %d, want 1024", store.used)
	}
}

func TestRenameFolderKeepsAncestorNames(t *testing.T) {
	store := newFakeStore(1 << 30)
	svc := newTestService(store, &fakeAdapter{provider: "google_drive"})

	root, _ := svc.CreateFolder(context.Background(), 1, "docs", "")
	child, _ := svc.CreateFolder(context.Background(), 1, "inner", root.ID)

	if err := svc.RenameFolder(context.Background(), 1, root.ID, "documents"); err != nil {
		t.Fatalf("RenameFolder: %v", err)
	}

	got, _ := store.GetFolder(context.Background(), root.ID, 1)
	if got.Name != "documents" {
		t.Errorf("name = %q", got.Name)
	}

	// Descendants keep the creation-time name; ancestry is by ID.
	gotChild, _ := store.GetFolder(context.Background(), child.ID, 1)
	if gotChild.Ancestors[0].Name != "docs" {
		t.Errorf("ancestor name = %q, want creation-time name", gotChild.Ancestors[0].Name)
	}
}

// flakyAdapter fails deletes for one external id only.
type flakyAdapter struct {
	coreAdapter
	failOn string
}

func (a *flakyAdapter) Provider() string { return "google_drive" }

func (a *flakyAdapter) Delete(ctx context.Context, externalID string) error {
	if externalID == a.failOn {
		return errors.New("object locked")
	}
	return nil
}
