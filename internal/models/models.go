// Package models defines the records tsm persists.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a dashboard account. AccessPages and AccessServers are ignored for
// admins, who can reach everything.
type User struct {
	ID            int64     `json:"-"`
	PublicID      string    `json:"publicId"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	IsAdmin       bool      `json:"isAdmin"`
	TokenVersion  int       `json:"-"`
	AccessServers []string  `json:"accessServersArray"`
	AccessPages   []string  `json:"accessPagesArray"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Machine is a server tsm manages nginx files for.
type Machine struct {
	PublicID                string    `json:"publicId"`
	MachineName             string    `json:"machineName"`
	URLAPIForTsmNetwork     string    `json:"urlApiForTsmNetwork"`
	LocalIPAddress          string    `json:"localIpAddress"`
	NginxStoragePathOptions []string  `json:"nginxStoragePathOptions"`
	CreatedAt               time.Time `json:"createdAt"`
}

// NginxFile records a config file tsm generated.
type NginxFile struct {
	PublicID        string    `json:"publicId"`
	ServerNames     []string  `json:"serverNameArrayOfAdditionalServerNames"`
	PortNumber      int       `json:"portNumber"`
	LocalIPAddress  string    `json:"localIpAddress"`
	MachinePublicID string    `json:"machinePublicId"`
	TemplateFile    string    `json:"templateFile"`
	FilePath        string    `json:"filePath"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PrimaryServerName returns the first server name, or "" when there is none.
func (f *NginxFile) PrimaryServerName() string {
	if len(f.ServerNames) == 0 {
		return ""
	}
	return f.ServerNames[0]
}

// NewPublicID returns a fresh identifier for a record.
func NewPublicID() string {
	return uuid.NewString()
}

// IsPublicID reports whether s parses as an identifier from NewPublicID.
func IsPublicID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// UsernameFromEmail returns the local part of an email address.
func UsernameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
