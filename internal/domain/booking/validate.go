package booking

import "time"

// Validate checks the invariants every stored booking must satisfy. It is
// called before each create and update is written.
func Validate(b *Booking) error {
	if !b.Shift.Valid() {
		return ErrInvalidShift.WithDetail("got %q", b.Shift)
	}
	if !b.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod.WithDetail("got %q", b.PaymentMethod)
	}
	if b.Price <= 0 {
		return ErrInvalidPrice.WithDetail("got %d", b.Price)
	}
	if b.Status == StatusConfirmed && b.PaymentMethod.IsOnline() && b.PaymentStatus != PaymentPaid {
		return ErrPaymentRequired
	}
	if b.Rating != nil {
		if err := validateRating(*b.Rating); err != nil {
			return err
		}
	}
	if b.FollowUpDate != nil {
		if err := validateFollowUp(b.Date, *b.FollowUpDate); err != nil {
			return err
		}
	}
	return nil
}

// validateNotPast rejects visit dates before today.
func validateNotPast(date, today time.Time) error {
	if date.Before(today) {
		return ErrInvalidDate.WithDetail("%s is before %s", date.Format("2006-01-02"), today.Format("2006-01-02"))
	}
	return nil
}

func validateRating(stars int) error {
	if stars < 1 || stars > 5 {
		return ErrInvalidRating.WithDetail("got %d", stars)
	}
	return nil
}

func validateFollowUp(visit, followUp time.Time) error {
	if !followUp.After(visit) {
		return ErrInvalidFollowUp.WithDetail("%s is not after %s", followUp.Format("2006-01-02"), visit.Format("2006-01-02"))
	}
	return nil
}
