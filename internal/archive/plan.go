package archive

import (
	"fmt"
	"strings"

	"github.com/lu-zhengda/knot/internal/domain"
)

// DepartmentFinder resolves a department by its display name.
// settings.Registry satisfies it.
type DepartmentFinder interface {
	FindByName(name string) *domain.Department
}

// Skipped is a folder auto-archive left in place.
type Skipped struct {
	Folder domain.WorkFolder `json:"folder"`
	Reason string            `json:"reason"`
}

// PlanAutoArchive matches every folder's recorded department against the
// registry and returns the moves to perform. Folders without a usable
// department are skipped with a reason.
func PlanAutoArchive(folders []domain.WorkFolder, depts DepartmentFinder) ([]domain.MoveItem, []Skipped) {
	items := []domain.MoveItem{}
	skipped := []Skipped{}
	for _, f := range folders {
		name := strings.TrimSpace(f.Department)
		if name == "" {
			skipped = append(skipped, Skipped{Folder: f, Reason: "no department recorded"})
			continue
		}
		d := depts.FindByName(name)
		switch {
		case d == nil:
			skipped = append(skipped, Skipped{Folder: f, Reason: fmt.Sprintf("department %q not configured", name)})
		case strings.TrimSpace(d.ArchivePath) == "":
			skipped = append(skipped, Skipped{Folder: f, Reason: fmt.Sprintf("department %q has no archive path", name)})
		default:
			items = append(items, domain.MoveItem{FolderPath: f.Path, ArchivePath: d.ArchivePath})
		}
	}
	return items, skipped
}
