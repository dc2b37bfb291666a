package netflow

import (
	"NetflowWatch/internal/domain/models"
)

// Classify assigns a direction and a signed flow to t against the custody addresses in m.
// A transfer carrying a label is only checked against that label's address; an unlabeled
// transfer takes the first label (ascending) whose address matches either side.
// When from == to == custody the to-match wins and the transfer is an inflow.
func Classify(t models.TransferRecord, m models.ExchangeAddressMap) models.ClassifiedTransfer {
	return classify(t, m, m.Labels())
}

// ClassifyAll classifies every transfer, preserving order.
func ClassifyAll(ts []models.TransferRecord, m models.ExchangeAddressMap) []models.ClassifiedTransfer {
	labels := m.Labels()
	out := make([]models.ClassifiedTransfer, 0, len(ts))
	for _, t := range ts {
		out = append(out, classify(t, m, labels))
	}
	return out
}

func classify(t models.TransferRecord, m models.ExchangeAddressMap, labels []string) models.ClassifiedTransfer {
	out := models.ClassifiedTransfer{TransferRecord: t, Direction: models.DirectionOther}
	from := models.NormalizeAddress(t.From)
	to := models.NormalizeAddress(t.To)

	if t.Exchange != "" {
		label := models.NormalizeLabel(t.Exchange)
		out.Exchange = label
		labels = []string{label}
	}

	for _, label := range labels {
		addr, ok := m[label]
		if !ok {
			continue
		}
		switch addr {
		case to:
			out.Exchange = label
			out.Direction = models.DirectionInflow
			out.SignedFlow = t.Value
			return out
		case from:
			out.Exchange = label
			out.Direction = models.DirectionOutflow
			out.SignedFlow = -t.Value
			return out
		}
	}
	return out
}
