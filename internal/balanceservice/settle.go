package balanceservice

import (
	"bytes"

	"github.com/google/uuid"
)

// MinorTransfer is a suggested transfer in minor units.
type MinorTransfer struct {
	From   uuid.UUID
	To     uuid.UUID
	Amount int64
}

type position struct {
	id     uuid.UUID
	amount int64
}

// Settle turns net positions into transfers by repeatedly matching the largest
// creditor with the largest debtor. Ties go to the lower member id. Nets must
// add up to zero; any residue is left unmatched.
func Settle(nets map[uuid.UUID]int64) []MinorTransfer {
	var creditors, debtors []position

	for id, net := range nets {
		switch {
		case net > 0:
			creditors = append(creditors, position{id, net})
		case net < 0:
			debtors = append(debtors, position{id, -net})
		}
	}

	var transfers []MinorTransfer

	for len(creditors) > 0 && len(debtors) > 0 {
		ci, di := largest(creditors), largest(debtors)
		c, d := &creditors[ci], &debtors[di]

		amount := min(c.amount, d.amount)
		transfers = append(transfers, MinorTransfer{From: d.id, To: c.id, Amount: amount})

		c.amount -= amount
		d.amount -= amount

		if c.amount == 0 {
			creditors = remove(creditors, ci)
		}

		if d.amount == 0 {
			debtors = remove(debtors, di)
		}
	}

	return transfers
}

func largest(ps []position) int {
	best := 0

	for i := 1; i < len(ps); i++ {
		switch {
		case ps[i].amount > ps[best].amount:
			best = i
		case ps[i].amount == ps[best].amount && bytes.Compare(ps[i].id[:], ps[best].id[:]) < 0:
			best = i
		}
	}

	return best
}

func remove(ps []position, i int) []position {
	ps[i] = ps[len(ps)-1]
	return ps[:len(ps)-1]
}
