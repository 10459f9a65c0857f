// Package models contains GORM persistence models for the billing ledger.
// Domain entities stay free of GORM tags; each model carries ToDomain and
// FromDomain mappers and repositories only read and write models.
//
// base.go holds the shared id, timestamp and tenant/version columns and
// billing.go the ledger tables. AllModels lists every table for AutoMigrate
// in sqlite-backed tests; production schemas come from the migrations package.
package models
