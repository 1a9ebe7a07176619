package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Role classifies a record file by its filename prefix.
type Role int

const (
	RoleOther Role = iota
	RolePlan
	RoleDose
)

func (r Role) String() string {
	switch r {
	case RolePlan:
		return "plan"
	case RoleDose:
		return "dose"
	default:
		return "other"
	}
}

// RoleOf returns the role implied by a file name: PL… plan, DO… dose.
func RoleOf(name string) Role {
	switch {
	case nameHasPrefix(name, "PL"):
		return RolePlan
	case nameHasPrefix(name, "DO"):
		return RoleDose
	default:
		return RoleOther
	}
}

// RecordFile is one exported record file.
type RecordFile struct {
	Name string
	Path string
	Role Role
}

// Group is an ordered batch of files sharing a role.
type Group struct {
	Role  Role
	Files []RecordFile
}

// ListRecordFiles returns the regular files in dir, sorted by name.
func ListRecordFiles(dir string) ([]RecordFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var files []RecordFile
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		files = append(files, RecordFile{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Role: RoleOf(e.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Partition splits files into role groups in submission order:
// other, plan, dose. Empty groups are kept so callers can report them.
func Partition(files []RecordFile) []Group {
	groups := []Group{{Role: RoleOther}, {Role: RolePlan}, {Role: RoleDose}}
	for _, f := range files {
		switch f.Role {
		case RolePlan:
			groups[1].Files = append(groups[1].Files, f)
		case RoleDose:
			groups[2].Files = append(groups[2].Files, f)
		default:
			groups[0].Files = append(groups[0].Files, f)
		}
	}
	return groups
}
