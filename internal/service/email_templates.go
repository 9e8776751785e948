package service

import (
	"fmt"
	"time"
)

func verificationEmailTemplate(verifyURL, appName string, expiresIn time.Duration) (string, string) {
	subject := fmt.Sprintf("Activate your %s account", appName)
	body := fmt.Sprintf(`Thanks for signing up to %s!

Confirm your email address by opening this link:
%s

This link expires in %s and can only be used once.

If you didn't create an account, you can safely ignore this email.

Best,
The %s Team`, appName, verifyURL, humanDuration(expiresIn), appName)

	return subject, body
}

// humanDuration renders whole hours or minutes, e.g. "24 hours", "10 minutes".
func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	return plural(int(d.Round(time.Minute)/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
