package schema

// Default returns the registration form seeded into empty stores.
func Default() FormSchema {
	minName, maxName := 2, 50
	minPassword := 8
	minAge, maxAge := 18.0, 120.0
	maxBio := 500
	return FormSchema{
		Title: "User Registration",
		Fields: []FieldSpec{
			{Name: "fullName", Label: "Full Name", Type: FieldTypeText, Required: true, MinLength: &minName, MaxLength: &maxName},
			{Name: "email", Label: "Email", Type: FieldTypeEmail, Required: true},
			{
				Name: "password", Label: "Password", Type: FieldTypePassword, Required: true, MinLength: &minPassword,
				CustomValidation: `value matches "[0-9]" && value matches "[A-Za-z]"`,
				CustomMessage:    "Password must contain letters and numbers",
			},
			{Name: "confirmPassword", Label: "Confirm Password", Type: FieldTypePassword, Required: true, ConfirmPassword: "password"},
			{Name: "birthDate", Label: "Date of Birth", Type: FieldTypeDate, Required: true, MaxDateHint: TodaySentinel},
			{Name: "age", Label: "Age", Type: FieldTypeNumber, Min: &minAge, Max: &maxAge},
			{Name: "country", Label: "Country", Type: FieldTypeSelect, Required: true, Options: []string{"United States", "Canada", "United Kingdom", "Germany", "India", "Other"}},
			{Name: "phone", Label: "Phone", Type: FieldTypePhone},
			{Name: "website", Label: "Website", Type: FieldTypeURL},
			{Name: "bio", Label: "Bio", Type: FieldTypeTextArea, MaxLength: &maxBio},
		},
	}
}
