package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClientRequest creates or replaces a client
// @Description Request body for creating or updating a client. country defaults to USA, status to PROSPECT.
type ClientRequest struct {
	CompanyName  string `json:"companyName" binding:"required,min=1,max=255" example:"Acme Logistics"`
	Industry     string `json:"industry" binding:"max=100"`
	Website      string `json:"website" binding:"omitempty,url,max=255"`
	ContactName  string `json:"contactName" binding:"max=255"`
	ContactEmail string `json:"contactEmail" binding:"omitempty,email,max=255"`
	ContactPhone string `json:"contactPhone" binding:"max=50"`
	ContactTitle string `json:"contactTitle" binding:"max=100"`
	AddressLine1 string `json:"addressLine1" binding:"max=255"`
	AddressLine2 string `json:"addressLine2" binding:"max=255"`
	City         string `json:"city" binding:"max=100"`
	State        string `json:"state" binding:"max=100"`
	PostalCode   string `json:"postalCode" binding:"max=20"`
	Country      string `json:"country" binding:"max=100"`
	Status       string `json:"status" binding:"omitempty,oneof=ACTIVE INACTIVE PROSPECT"`
	Notes        string `json:"notes"`
}

// ClientResponse represents a client
type ClientResponse struct {
	ID           uuid.UUID       `json:"clientId"`
	CompanyName  string          `json:"companyName"`
	DisplayName  string          `json:"displayName"`
	Industry     string          `json:"industry,omitempty"`
	Website      string          `json:"website,omitempty"`
	ContactName  string          `json:"contactName,omitempty"`
	ContactEmail string          `json:"contactEmail,omitempty"`
	ContactPhone string          `json:"contactPhone,omitempty"`
	ContactTitle string          `json:"contactTitle,omitempty"`
	AddressLine1 string          `json:"addressLine1,omitempty"`
	AddressLine2 string          `json:"addressLine2,omitempty"`
	City         string          `json:"city,omitempty"`
	State        string          `json:"state,omitempty"`
	PostalCode   string          `json:"postalCode,omitempty"`
	Country      string          `json:"country"`
	FullAddress  string          `json:"fullAddress,omitempty"`
	Status       string          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	DealCount    int64           `json:"dealCount"`
	DealValue    decimal.Decimal `json:"dealValue" swaggertype:"string"`
	CreatedByID  *uuid.UUID      `json:"createdById,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ClientSearchResult is one live-search hit
type ClientSearchResult struct {
	ID           uuid.UUID `json:"clientId"`
	CompanyName  string    `json:"companyName"`
	ContactName  string    `json:"contactName,omitempty"`
	ContactEmail string    `json:"contactEmail,omitempty"`
}

var clientSortColumns = map[string]string{
	"name":     "clients.company_name ASC",
	"-name":    "clients.company_name DESC",
	"created":  "clients.created_at ASC",
	"-created": "clients.created_at DESC",
}

// ClientFilters narrows the client list
type ClientFilters struct {
	Query    string
	Status   string
	Sort     string
	Page     int
	PageSize int
}

// Normalize applies paging defaults and trims the query
func (f *ClientFilters) Normalize() {
	f.Query = strings.TrimSpace(f.Query)
	f.Status = strings.ToUpper(strings.TrimSpace(f.Status))
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// OrderClause maps Sort onto a whitelisted ORDER BY, company name by default
func (f *ClientFilters) OrderClause() string {
	if clause, ok := clientSortColumns[f.Sort]; ok {
		return clause
	}
	return "clients.company_name ASC"
}

func (f *ClientFilters) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ClientListResponse is one page of clients
type ClientListResponse struct {
	Clients  []ClientResponse `json:"clients"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}
