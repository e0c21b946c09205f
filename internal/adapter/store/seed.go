package store

import (
	"context"

	"teller/internal/domain"
)

// Seed inserts demo accounts and product offers for local development.
// Existing rows are left untouched.
func (s *SQLiteStore) Seed(ctx context.Context, tenantID, userID string) error {
	accounts := []domain.Account{
		{ID: "A1", Number: "Acc001", TenantID: tenantID, UserID: userID, Holder: "Primary Checking", Balance: 5000},
		{ID: "A2", Number: "Acc002", TenantID: tenantID, UserID: userID, Holder: "Savings", Balance: 12000},
		{ID: "A3", Number: "Acc003", TenantID: tenantID, UserID: userID, Holder: "Joint Checking", Balance: 750},
	}
	for _, a := range accounts {
		if _, err := s.AccountByNumber(ctx, a.Number, tenantID, userID); err == nil {
			continue
		}
		if err := s.CreateAccount(ctx, &a); err != nil {
			return err
		}
	}

	offers := []domain.Offer{
		{ID: "offer-cc-cashback", Name: "Everyday Cashback Card", AccountType: "credit_card",
			Text: "2% cashback on groceries and fuel, no annual fee for the first year."},
		{ID: "offer-cc-travel", Name: "Voyager Travel Card", AccountType: "credit_card",
			Text: "3x points on travel and dining, lounge access, $95 annual fee."},
		{ID: "offer-loan-home", Name: "Fixed Home Loan", AccountType: "loan",
			Text: "30-year fixed-rate home loan with no origination fee for existing customers."},
		{ID: "offer-loan-auto", Name: "Auto Loan Plus", AccountType: "loan",
			Text: "New and used auto loans with same-day approval and flexible terms."},
		{ID: "offer-savings-hy", Name: "High-Yield Savings", AccountType: "savings",
			Text: "High-yield savings account with no minimum balance and daily compounding."},
	}
	for _, o := range offers {
		if err := s.AddOffer(ctx, o); err != nil {
			return err
		}
	}
	return nil
}
