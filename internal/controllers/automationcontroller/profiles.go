package automationcontroller

import (
	"github.com/thatsimonsguy/ac-controller/internal/config"
	"github.com/thatsimonsguy/ac-controller/internal/model"
)

type Profile struct {
	PowerOn bool
	Temp    int
	Mode    model.Mode
}

type profileKey struct {
	family model.Mode
	armed  bool
}

// ProfileTable maps (mode family, armed) to the state to apply. Only heat and cool
// families have entries.
type ProfileTable map[profileKey]Profile

func NewProfileTable(profiles map[string]config.ProfilePair) ProfileTable {
	table := ProfileTable{}
	for family, pair := range profiles {
		mode, ok := model.ParseMode(family)
		if !ok {
			continue
		}
		if pair.Armed != nil {
			table.Set(mode, true, fromConfig(pair.Armed))
		}
		if pair.Disarmed != nil {
			table.Set(mode, false, fromConfig(pair.Disarmed))
		}
	}
	return table
}

func fromConfig(p *config.Profile) Profile {
	return Profile{PowerOn: p.PowerOn, Temp: p.Temp, Mode: p.Mode}
}

func (t ProfileTable) Set(family model.Mode, armed bool, p Profile) {
	t[profileKey{family: family, armed: armed}] = p
}

func (t ProfileTable) Lookup(family model.Mode, armed bool) (Profile, bool) {
	p, ok := t[profileKey{family: family, armed: armed}]
	return p, ok
}
