package shipping

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Status is a parcel status from the carrier's vocabulary.
type Status int

const (
	// StatusUnrecognized is a label the carrier sent that is not known here.
	StatusUnrecognized Status = iota
	StatusNotYetShipped
	StatusInPreparation
	StatusAtCenter
	StatusToProvince
	StatusOutForDelivery
	StatusDelivered
	StatusDeliveryFailed
	StatusReturnPendingPickup
	StatusReturnedToSender
	StatusExchangeFailed
	// StatusIntermediate is a known carrier state that has no histogram bucket.
	StatusIntermediate
)

var statusNames = map[Status]string{
	StatusUnrecognized:        "unrecognized",
	StatusNotYetShipped:       "not_yet_shipped",
	StatusInPreparation:       "in_preparation",
	StatusAtCenter:            "at_center",
	StatusToProvince:          "to_province",
	StatusOutForDelivery:      "out_for_delivery",
	StatusDelivered:           "delivered",
	StatusDeliveryFailed:      "delivery_failed",
	StatusReturnPendingPickup: "return_pending_pickup",
	StatusReturnedToSender:    "returned_to_sender",
	StatusExchangeFailed:      "exchange_failed",
	StatusIntermediate:        "intermediate",
}

// String returns the stable machine name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[StatusUnrecognized]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to StatusUnrecognized.
func (s *Status) UnmarshalText(text []byte) error {
	for st, name := range statusNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	*s = StatusUnrecognized
	return nil
}

// Bucketed reports whether the status is counted in the histogram.
func (s Status) Bucketed() bool {
	return s != StatusUnrecognized && s != StatusIntermediate
}

// Terminal reports whether the carrier will not move the parcel further.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusReturnedToSender, StatusExchangeFailed:
		return true
	}
	return false
}

// Carrier labels, keyed by their folded form.
var statusLabels = map[string]Status{
	"pas encore expedie":   StatusNotYetShipped,
	"pas encore ramasse":   StatusNotYetShipped,
	"en preparation":       StatusInPreparation,
	"centre":               StatusAtCenter,
	"vers wilaya":          StatusToProvince,
	"sorti en livraison":   StatusOutForDelivery,
	"livre":                StatusDelivered,
	"echec livraison":      StatusDeliveryFailed,
	"retour a retirer":     StatusReturnPendingPickup,
	"retourne au vendeur":  StatusReturnedToSender,
	"echange echoue":       StatusExchangeFailed,
	"expedie":              StatusIntermediate,
	"ramasse":              StatusIntermediate,
	"transfert":            StatusIntermediate,
	"en localisation":      StatusIntermediate,
	"vers commune":         StatusIntermediate,
	"recu a wilaya":        StatusIntermediate,
	"en attente du client": StatusIntermediate,
	"tentative echouee":    StatusIntermediate,
	"en alerte":            StatusIntermediate,
	"alerte resolue":       StatusIntermediate,
	"en attente":           StatusIntermediate,
	"retour vers centre":   StatusIntermediate,
	"retourne au centre":   StatusIntermediate,
	"retour transfert":     StatusIntermediate,
	"retour groupe":        StatusIntermediate,
	"retour a livrer":      StatusIntermediate,
	"retour vers vendeur":  StatusIntermediate,
	"echange":              StatusIntermediate,
}

// ParseStatus maps a carrier label to a Status. Matching ignores case,
// accents and surrounding or repeated whitespace.
func ParseStatus(label string) Status {
	if s, ok := statusLabels[foldLabel(label)]; ok {
		return s
	}
	return StatusUnrecognized
}

func foldLabel(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
