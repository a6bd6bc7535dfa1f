// Package models holds the GORM rows of the fee ledger. Domain types in
// internal/domain/fee carry no ORM tags; each model converts to and from its
// domain counterpart with FromDomain and ToDomain.
//
// Money columns are DECIMAL(18,4). Every tenant-owned row carries tenant_id,
// which the tenant guard requires in the WHERE clause of reads and writes.
package models
