// Package billing provides domain models for condominium quota billing and
// payment reconciliation.
//
// This package implements the billing bounded context, which is responsible for:
//   - Defining quota formulas (fixed, expression based, or per-unit amounts)
//   - Calculating monthly charges for units from formula definitions
//   - Tracking quota lifecycle from issuance through payment or write-off
//   - Reconciling reported payments against open quotas
//
// Key Aggregates:
//   - QuotaFormula: Versioned definition of how a charge is computed
//   - Quota: A billed amount for one unit and period, with applications
//   - Payment: A reported payment moving through verification states
//
// Value Objects and Entities:
//   - ChargeResult: Outcome of evaluating a formula for a unit
//   - PaymentApplication: Allocation of a payment against one quota
//   - PaymentPendingAllocation: Remainder awaiting manual resolution
package billing
