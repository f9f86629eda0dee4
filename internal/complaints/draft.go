package complaints

import (
	"strings"
	"unicode/utf8"
)

// Draft is the editable copy of a complaint held by a create/update form until
// it is saved. ID is zero for a new complaint.
type Draft struct {
	ID           int         `json:"id" form:"id"`
	Title        string      `json:"title" form:"title"`
	Description  string      `json:"description" form:"description"`
	Type         string      `json:"type" form:"type"`
	DepartmentID int         `json:"departmentId" form:"departmentId"`
	Location     *Coordinate `json:"location"`
	Status       *Status     `json:"status,omitempty"`
}

// FieldErrors maps a form field to the message rendered next to it.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+": "+v)
	}
	return "invalid complaint: " + strings.Join(parts, "; ")
}

const (
	maxTitle       = 120
	maxDescription = 2000
)

// Validate checks the draft before any request is issued. The returned error
// is a FieldErrors value, or nil.
func (d Draft) Validate() error {
	errs := FieldErrors{}
	title := strings.TrimSpace(d.Title)
	switch {
	case title == "":
		errs["title"] = "Başlık zorunludur."
	case utf8.RuneCountInString(title) > maxTitle:
		errs["title"] = "Başlık en fazla 120 karakter olabilir."
	}
	if strings.TrimSpace(d.Description) == "" {
		errs["description"] = "Açıklama zorunludur."
	} else if utf8.RuneCountInString(d.Description) > maxDescription {
		errs["description"] = "Açıklama en fazla 2000 karakter olabilir."
	}
	if strings.TrimSpace(d.Type) == "" {
		errs["type"] = "Şikayet türü seçilmelidir."
	}
	if d.Location == nil {
		errs["location"] = "Haritadan bir konum seçilmelidir."
	} else if !d.Location.Valid() {
		errs["location"] = "Konum geçersiz."
	}
	if d.Status != nil && !d.Status.Valid() {
		errs["status"] = "Durum geçersiz."
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Apply copies the draft's editable fields onto r.
func (d Draft) Apply(r Record) Record {
	r.Title = strings.TrimSpace(d.Title)
	r.Description = d.Description
	r.Type = d.Type
	r.DepartmentID = d.DepartmentID
	if d.Location != nil {
		loc := *d.Location
		r.Location = &loc
	}
	if d.Status != nil {
		r.Status = *d.Status
	}
	return r
}

// DraftFrom opens a draft for editing an existing record.
func DraftFrom(r Record) Draft {
	d := Draft{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Type:         r.Type,
		DepartmentID: r.DepartmentID,
	}
	if r.Location != nil {
		loc := *r.Location
		d.Location = &loc
	}
	st := r.Status
	d.Status = &st
	return d
}
