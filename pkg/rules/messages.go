package rules

import (
	"fmt"
	"strconv"
)

const (
	MsgInvalidEmail    = "Invalid email format"
	MsgInvalidPhone    = "Invalid phone number"
	MsgInvalidURL      = "Invalid URL format"
	MsgInvalidOption   = "Please select a valid option"
	MsgInvalidFormat   = "Invalid format"
	MsgNotANumber      = "Must be a number"
	MsgInvalidDate     = "Please enter a valid date"
	MsgConfirmRequired = "Confirm password is required"
	MsgPasswordsDiffer = "Passwords must match"
)

func msgRequired(label string) string {
	return label + " is required"
}

func msgMinLength(n int) string {
	return fmt.Sprintf("Minimum %d characters required", n)
}

func msgMaxLength(n int) string {
	return fmt.Sprintf("Maximum %d characters allowed", n)
}

func msgMinValue(v float64) string {
	return "Minimum value is " + formatNumber(v)
}

func msgMaxValue(v float64) string {
	return "Maximum value is " + formatNumber(v)
}

func msgDateAfter(date string) string {
	return "Date must be after " + date
}

func msgDateBefore(date string) string {
	return "Date must be before " + date
}

func msgCustom(label string) string {
	return label + " is invalid"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
