package doctor

// The leave ledger is a set of pure operations on a Doctor's allowance
// counters. Callers hold the doctor's row lock while applying them.
//
// Every operation that reads or mutates the ledger first calls Rollover with
// the current year, so used days reset to zero the first time the ledger is
// touched in a new calendar year.

// Rollover resets the ledger when year is later than the stored year. It
// reports whether the doctor was modified. A zero stored year is treated as
// the current one.
func Rollover(d *Doctor, year int) bool {
	if d.LeaveYear == 0 {
		d.LeaveYear = year
		return true
	}
	if year <= d.LeaveYear {
		return false
	}
	d.LeaveYear = year
	d.LeaveUsed = 0
	return true
}

// RemainingLeave is allowance minus used, never negative.
func RemainingLeave(d *Doctor) int {
	r := d.LeaveAllowance - d.LeaveUsed
	if r < 0 {
		return 0
	}
	return r
}

// ConsumeLeave books days against the allowance. The ledger is left
// untouched when it fails.
func ConsumeLeave(d *Doctor, days int) error {
	if days < 0 {
		return ErrInvalidLeaveRange
	}
	if days > RemainingLeave(d) {
		return ErrInsufficientLeave.WithDetail("requested %d, remaining %d", days, RemainingLeave(d))
	}
	d.LeaveUsed += days
	return nil
}

// RefundLeave returns days to the allowance, flooring used at zero.
func RefundLeave(d *Doctor, days int) {
	if days <= 0 {
		return
	}
	d.LeaveUsed -= days
	if d.LeaveUsed < 0 {
		d.LeaveUsed = 0
	}
}

func balanceOf(d *Doctor) Balance {
	return Balance{
		DoctorID:  d.ID,
		Year:      d.LeaveYear,
		Allowance: d.LeaveAllowance,
		Used:      d.LeaveUsed,
		Remaining: RemainingLeave(d),
	}
}
