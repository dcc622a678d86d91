package loader

import (
	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// linkFolders completes the folder tree: the root folder, every folder a
// policy or service path implies, and the parent links between them.
// Declared folders keep their ids and annotations.
func linkFolders(b *v1alpha1.Bundle) {
	if b.Folders == nil {
		b.Folders = make(map[string]*v1alpha1.Folder)
	}
	var ensure func(p string) *v1alpha1.Folder
	ensure = func(p string) *v1alpha1.Folder {
		f, ok := b.Folders[p]
		if !ok {
			f = &v1alpha1.Folder{}
			b.Folders[p] = f
		}
		f.Path = p
		if p == "" {
			f.ID = types.RootFolderID
			defaultName(&f.Base, types.RootFolderName)
			f.Parent = nil
			return f
		}
		defaultName(&f.Base, v1alpha1.BaseName(p))
		if f.Parent == nil {
			f.Parent = ensure(v1alpha1.FolderPath(p))
		}
		return f
	}

	ensure("")
	for _, key := range v1alpha1.SortedKeys(b.Folders) {
		ensure(key)
	}
	for _, key := range v1alpha1.SortedKeys(b.Policies) {
		b.Policies[key].Folder = ensure(v1alpha1.FolderPath(key))
	}
	for _, key := range v1alpha1.SortedKeys(b.Services) {
		b.Services[key].Folder = ensure(v1alpha1.FolderPath(key))
	}
}
