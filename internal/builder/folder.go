package builder

import (
	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// FolderBuilder emits the folder tree, parents before children. Folders are
// mapped by path and never overwritten.
type FolderBuilder struct{}

func (FolderBuilder) Name() string  { return "folder" }
func (FolderBuilder) Priority() int { return 100 }

func (f FolderBuilder) Build(b *v1alpha1.Bundle, mode Mode, bc *Context) ([]Record, error) {
	switch mode {
	case Environment:
		return nil, nil
	case Deployment:
	default:
		return nil, unsupported(f.Name(), mode)
	}

	var records []Record
	for _, path := range v1alpha1.SortedKeys(b.Folders) {
		folder := b.Folders[path]
		if excluded(folder) {
			continue
		}
		el := entityElement("Folder", &folder.Base)
		rec := Record{Type: types.EntityTypeFolder, Name: folder.Name, ID: folder.ID, Content: el, Action: types.ActionNewOrExisting}
		if !folder.IsRoot() {
			if folder.Parent == nil || folder.Parent.ID == "" {
				return nil, conditions.Errorf(conditions.ReasonValidationFailed, path, "folder has no parent")
			}
			el.CreateAttr("folderId", folder.Parent.ID)
			rec.Properties = []policyxml.Property{
				{Key: types.PropertyMapBy, Value: types.MapByPath},
				{Key: types.PropertyMapTo, Value: "/" + path},
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// folderID returns the id of f, falling back to the root folder.
func folderID(f *v1alpha1.Folder) string {
	if f == nil || f.ID == "" {
		return types.RootFolderID
	}
	return f.ID
}
