package domain

import "strings"

// User is a synthetic member of the simulated social network.
type User struct {
	UUID           string   `json:"uuid"`
	Name           string   `json:"name"`
	Surname        string   `json:"surname"`
	Gender         string   `json:"gender"`
	Age            int      `json:"age"`
	Occupation     string   `json:"occupation"`
	Nationality    string   `json:"nationality"`
	City           string   `json:"city"`
	Bio            string   `json:"bio"`
	Traits         []string `json:"traits"`
	ProfilePicture string   `json:"profile_picture"`
	Role           string   `json:"role"`
}

func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.Name + " " + u.Surname)
}

// Patch shallow-merges the non-zero fields of other into u. Patches for a
// different uuid are ignored.
func (u *User) Patch(other User) bool {
	if u == nil || other.UUID != u.UUID {
		return false
	}
	if other.Name != "" {
		u.Name = other.Name
	}
	if other.Surname != "" {
		u.Surname = other.Surname
	}
	if other.Gender != "" {
		u.Gender = other.Gender
	}
	if other.Age != 0 {
		u.Age = other.Age
	}
	if other.Occupation != "" {
		u.Occupation = other.Occupation
	}
	if other.Nationality != "" {
		u.Nationality = other.Nationality
	}
	if other.City != "" {
		u.City = other.City
	}
	if other.Bio != "" {
		u.Bio = other.Bio
	}
	if other.Traits != nil {
		u.Traits = append([]string(nil), other.Traits...)
	}
	if other.ProfilePicture != "" {
		u.ProfilePicture = other.ProfilePicture
	}
	if other.Role != "" {
		u.Role = other.Role
	}
	return true
}
