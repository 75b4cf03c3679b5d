package checkout

import "fmt"

// Bus dispatches messages by name.
type Bus interface {
	Send(name string, args ...any) any
}

// Checkout charges order on bus, announces it, and returns the receipt.
func Checkout(bus Bus, order string, cents int) (string, error) {
	if ok, _ := bus.Send("charge!", order, cents).(bool); !ok {
		return "", fmt.Errorf("charging %s: declined", order)
	}

	bus.Send("notify", "paid", order)

	receipt, _ := bus.Send("receipt", order).(string)

	return receipt, nil
}
