package model

type Sport string

const (
	SportFutsal  Sport = "futsal"
	SportSociety Sport = "society"
	SportCampo   Sport = "campo"
)

var sportPositions = map[Sport][]string{
	SportFutsal:  {"Goleiro", "Fixo", "Ala Esquerda", "Ala Direita", "Pivô"},
	SportSociety: {"Goleiro", "Zagueiro", "Lateral", "Volante", "Meia", "Atacante"},
	SportCampo:   {"Goleiro", "Zagueiro", "Lateral Esquerdo", "Lateral Direito", "Volante", "Meia", "Ponta", "Centroavante"},
}

// Sports lists the supported sports in display order.
func Sports() []Sport {
	return []Sport{SportFutsal, SportSociety, SportCampo}
}

func (s Sport) Valid() bool {
	_, ok := sportPositions[s]
	return ok
}

// Positions returns the court positions of the sport. Unknown sports get the futsal court.
func (s Sport) Positions() []string {
	p, ok := sportPositions[s]
	if !ok {
		p = sportPositions[SportFutsal]
	}
	out := make([]string, len(p))
	copy(out, p)
	return out
}

func (s Sport) HasPosition(position string) bool {
	for _, p := range s.Positions() {
		if p == position {
			return true
		}
	}
	return false
}
