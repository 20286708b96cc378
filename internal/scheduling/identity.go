package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ClinicianRoles are the legacy account roles that may appear on bookings.
// Accounts with any other role are not bookable.
var ClinicianRoles = []string{"urologist", "surgeon", "doctor"}

// ResolveClinician maps an externally supplied clinician reference to the
// canonical roster record. The reference may be a roster id or a legacy
// staff account id; in the latter case the account is reconciled to the
// roster by case-insensitive email. Legacy ids are never returned: a legacy
// account with no roster counterpart is not bookable and resolves to
// ErrClinicianNotFound.
func (s *Service) ResolveClinician(ctx context.Context, ref uuid.UUID) (*Clinician, error) {
	return resolveClinician(ctx, s.repo, ref)
}

func resolveClinician(ctx context.Context, repo Repository, ref uuid.UUID) (*Clinician, error) {
	c, err := repo.GetClinicianByID(ctx, ref)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrClinicianNotFound) {
		return nil, fmt.Errorf("load roster clinician: %w", err)
	}

	acct, err := repo.GetStaffAccountByID(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrClinicianNotFound) {
			return nil, ErrClinicianNotFound
		}
		return nil, fmt.Errorf("load staff account: %w", err)
	}

	c, err = repo.GetClinicianByEmail(ctx, acct.Email)
	if err != nil {
		if errors.Is(err, ErrClinicianNotFound) {
			return nil, ErrClinicianNotFound
		}
		return nil, fmt.Errorf("reconcile staff account by email: %w", err)
	}
	return c, nil
}

// ListBookableClinicians merges roster records with clinician-role legacy
// accounts, reconciles the legacy entries by email, and de-duplicates the
// result by email with the roster entry winning on conflict.
func (s *Service) ListBookableClinicians(ctx context.Context) ([]Clinician, error) {
	roster, err := s.repo.ListActiveClinicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roster clinicians: %w", err)
	}
	accounts, err := s.repo.ListClinicianStaffAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list staff accounts: %w", err)
	}

	rosterEmails := make(map[string]bool, len(roster))
	for _, c := range roster {
		rosterEmails[strings.ToLower(c.Email)] = true
	}

	merged := make([]Clinician, 0, len(roster))
	merged = append(merged, roster...)

	for _, acct := range accounts {
		if rosterEmails[strings.ToLower(acct.Email)] {
			continue
		}
		c, err := s.repo.GetClinicianByEmail(ctx, acct.Email)
		if err != nil {
			if errors.Is(err, ErrClinicianNotFound) {
				// No roster counterpart: displayable elsewhere, not bookable.
				continue
			}
			return nil, fmt.Errorf("reconcile staff account %s: %w", acct.ID, err)
		}
		merged = append(merged, *c)
	}

	seen := make(map[string]bool, len(merged))
	deduped := merged[:0]
	for _, c := range merged {
		key := strings.ToLower(c.Email)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, c)
	}
	return deduped, nil
}
