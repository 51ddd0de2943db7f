package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ClientStatus is the relationship status of a client company
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "ACTIVE"
	ClientStatusInactive ClientStatus = "INACTIVE"
	ClientStatusProspect ClientStatus = "PROSPECT"
)

func (s ClientStatus) Valid() bool {
	switch s {
	case ClientStatusActive, ClientStatusInactive, ClientStatusProspect:
		return true
	}
	return false
}

// Client is a company (and primary contact) that deals are pursued with
type Client struct {
	BaseModel
	CompanyName  string       `gorm:"type:varchar(255);not null;index:idx_clients_company_name" json:"companyName"`
	Industry     string       `gorm:"type:varchar(100)" json:"industry,omitempty"`
	Website      string       `gorm:"type:varchar(255)" json:"website,omitempty"`
	ContactName  string       `gorm:"type:varchar(255)" json:"contactName,omitempty"`
	ContactEmail string       `gorm:"type:varchar(255);index:idx_clients_contact_email" json:"contactEmail,omitempty"`
	ContactPhone string       `gorm:"type:varchar(50)" json:"contactPhone,omitempty"`
	ContactTitle string       `gorm:"type:varchar(100)" json:"contactTitle,omitempty"`
	AddressLine1 string       `gorm:"type:varchar(255)" json:"addressLine1,omitempty"`
	AddressLine2 string       `gorm:"type:varchar(255)" json:"addressLine2,omitempty"`
	City         string       `gorm:"type:varchar(100)" json:"city,omitempty"`
	State        string       `gorm:"type:varchar(100)" json:"state,omitempty"`
	PostalCode   string       `gorm:"type:varchar(20)" json:"postalCode,omitempty"`
	Country      string       `gorm:"type:varchar(100);not null;default:'USA'" json:"country"`
	Status       ClientStatus `gorm:"type:varchar(20);not null;default:'PROSPECT';index:idx_clients_status" json:"status"`
	Notes        string       `gorm:"type:text" json:"notes,omitempty"`
	CreatedByID  *uuid.UUID   `gorm:"type:uuid" json:"createdById,omitempty"`
}

// TableName specifies the table name for Client
func (Client) TableName() string {
	return "clients"
}

// DisplayName prefers the company, falling back to the contact
func (c *Client) DisplayName() string {
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return c.ContactName
}

// FullAddress joins the non-empty address parts
func (c *Client) FullAddress() string {
	var parts []string
	for _, p := range []string{c.AddressLine1, c.AddressLine2} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	cityLine := c.City
	if c.State != "" {
		if cityLine != "" {
			cityLine += ", "
		}
		cityLine += c.State
	}
	if c.PostalCode != "" {
		if cityLine != "" {
			cityLine += " "
		}
		cityLine += c.PostalCode
	}
	if cityLine != "" {
		parts = append(parts, cityLine)
	}
	if c.Country != "" && c.Country != "USA" {
		parts = append(parts, c.Country)
	}
	return strings.Join(parts, ", ")
}
