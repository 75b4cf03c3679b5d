package mailer

// Mailer sends messages.
type Mailer struct {
	Send   func(to, subject string) error
	Bounce func(id int) bool
}

// Welcome sends the welcome message to each address and returns how many
// sends failed.
func Welcome(mailer *Mailer, addresses ...string) int {
	failed := 0

	for _, address := range addresses {
		if mailer.Send(address, "welcome") != nil {
			failed++
		}
	}

	return failed
}
