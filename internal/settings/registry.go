package settings

import (
	"strings"

	"github.com/google/uuid"

	"github.com/lu-zhengda/knot/internal/domain"
)

// Updater is the slice of Store the registry depends on.
type Updater interface {
	Read() domain.Settings
	Update(fn func(cur domain.Settings) (*Patch, error)) (domain.Settings, error)
}

// DepartmentPatch carries optional department field changes.
type DepartmentPatch struct {
	Name        *string
	ArchivePath *string
}

// Registry manages the departments stored in the settings record.
type Registry struct {
	store Updater
}

// NewRegistry returns a Registry layered on store.
func NewRegistry(store Updater) *Registry {
	return &Registry{store: store}
}

// newID returns a time-ordered unique department id.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// List returns the departments in stored order.
func (r *Registry) List() []domain.Department {
	return r.store.Read().Departments
}

// Add creates a department with a fresh id and persists it.
func (r *Registry) Add(name, archivePath string) (domain.Department, error) {
	d := domain.Department{
		ID:          newID(),
		Name:        strings.TrimSpace(name),
		ArchivePath: strings.TrimSpace(archivePath),
	}
	if err := validateDepartment(d); err != nil {
		return domain.Department{}, &domain.ValidationError{Message: err.Error()}
	}
	_, err := r.store.Update(func(cur domain.Settings) (*Patch, error) {
		return &Patch{Departments: append(cur.Departments, d)}, nil
	})
	if err != nil {
		return domain.Department{}, err
	}
	return d, nil
}

// Update merges p into the department with the given id. It returns nil
// without error when the id is unknown.
func (r *Registry) Update(id string, p DepartmentPatch) (*domain.Department, error) {
	var updated *domain.Department
	_, err := r.store.Update(func(cur domain.Settings) (*Patch, error) {
		i := indexOf(cur.Departments, id)
		if i < 0 {
			return nil, nil
		}
		d := cur.Departments[i]
		if p.Name != nil {
			d.Name = strings.TrimSpace(*p.Name)
		}
		if p.ArchivePath != nil {
			d.ArchivePath = strings.TrimSpace(*p.ArchivePath)
		}
		if err := validateDepartment(d); err != nil {
			return nil, &domain.ValidationError{Message: err.Error()}
		}
		cur.Departments[i] = d
		updated = &d
		return &Patch{Departments: cur.Departments}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Remove deletes the department with the given id and returns the
// remaining list. Removing the default department clears the default in
// the same write.
func (r *Registry) Remove(id string) ([]domain.Department, error) {
	st, err := r.store.Update(func(cur domain.Settings) (*Patch, error) {
		i := indexOf(cur.Departments, id)
		if i < 0 {
			return nil, nil
		}
		remaining := append(cur.Departments[:i:i], cur.Departments[i+1:]...)
		p := &Patch{Departments: remaining}
		if cur.DefaultDepartmentID != nil && *cur.DefaultDepartmentID == id {
			p.DefaultDepartmentID = Ptr("")
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return st.Departments, nil
}

// SetDefault marks the department with the given id as default. It
// returns nil without writing when the id is unknown.
func (r *Registry) SetDefault(id string) (*domain.Department, error) {
	var found *domain.Department
	_, err := r.store.Update(func(cur domain.Settings) (*Patch, error) {
		i := indexOf(cur.Departments, id)
		if i < 0 {
			return nil, nil
		}
		d := cur.Departments[i]
		found = &d
		return &Patch{DefaultDepartmentID: Ptr(id)}, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ClearDefault removes the default department pointer.
func (r *Registry) ClearDefault() error {
	_, err := r.store.Update(func(domain.Settings) (*Patch, error) {
		return &Patch{DefaultDepartmentID: Ptr("")}, nil
	})
	return err
}

// GetDefault resolves the default id against the live list. A stale id
// yields nil.
func (r *Registry) GetDefault() *domain.Department {
	st := r.store.Read()
	if st.DefaultDepartmentID == nil {
		return nil
	}
	return find(st.Departments, func(d domain.Department) bool {
		return d.ID == *st.DefaultDepartmentID
	})
}

// GetByID returns the department with the given id, or nil.
func (r *Registry) GetByID(id string) *domain.Department {
	return find(r.List(), func(d domain.Department) bool { return d.ID == id })
}

// FindByName returns the first department with the given name, or nil.
func (r *Registry) FindByName(name string) *domain.Department {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return find(r.List(), func(d domain.Department) bool { return d.Name == name })
}

// Resolve looks a department up by id first, then by name.
func (r *Registry) Resolve(ref string) *domain.Department {
	if d := r.GetByID(ref); d != nil {
		return d
	}
	return r.FindByName(ref)
}

func indexOf(depts []domain.Department, id string) int {
	for i, d := range depts {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func find(depts []domain.Department, match func(domain.Department) bool) *domain.Department {
	for _, d := range depts {
		if match(d) {
			d := d
			return &d
		}
	}
	return nil
}
