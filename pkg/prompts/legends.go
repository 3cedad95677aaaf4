package prompts

import (
	"strings"
)

// Legend is a well-known story a legends session can be set in.
type Legend struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LegendCategory groups legends for display.
type LegendCategory struct {
	Name    string   `json:"name"`
	Legends []Legend `json:"legends"`
}

var legends = []LegendCategory{
	{
		Name: "Mythology",
		Legends: []Legend{
			{Name: "The Twelve Labours of Heracles", Description: "Complete the impossible tasks set for the demigod Heracles."},
			{Name: "The Trojan War", Description: "Join the legendary war of heroes such as Achilles and Hector."},
			{Name: "The Epic of Gilgamesh", Description: "Follow the Sumerian king Gilgamesh in his search for immortality."},
			{Name: "Ragnarok", Description: "Fight beside Odin and Thor in the doom of the Norse gods."},
			{Name: "Theseus and the Minotaur", Description: "Find and defeat the Minotaur in the labyrinth of Crete."},
			{Name: "Jason and the Golden Fleece", Description: "Sail the Argo across perilous seas to seize the Golden Fleece."},
			{Name: "The Myth of Osiris", Description: "Witness the rebirth of Osiris after his murder by his brother Set."},
			{Name: "Amaterasu's Cave", Description: "Help coax the Japanese sun goddess out of the cave where she hides."},
			{Name: "The Abduction of Persephone", Description: "Live the tale of the goddess taken to the underworld by Hades."},
			{Name: "The Fire of Prometheus", Description: "Become the titan who defied the gods to give fire to humanity."},
		},
	},
	{
		Name: "Horror",
		Legends: []Legend{
			{Name: "Dracula", Description: "Unravel the mystery of Count Dracula in his Transylvanian castle."},
			{Name: "The Call of Cthulhu", Description: "Survive cosmic horror without losing your mind."},
			{Name: "Slender Man", Description: "Gather proof of the figure in the woods, then run."},
			{Name: "Frankenstein", Description: "Experience the story of Victor Frankenstein's tragic creation."},
			{Name: "Wendigo", Description: "Hide from the man-eating creature of the northern forests."},
			{Name: "La Llorona", Description: "Escape the curse of the weeping ghost by the river."},
		},
	},
	{
		Name: "Anatolian Legends",
		Legends: []Legend{
			{Name: "The Ergenekon Epic", Description: "Lead your people out of the valley by melting the mountain of iron."},
			{Name: "The Legend of Shahmaran", Description: "Discover the secret of the queen of serpents and protect her."},
			{Name: "The Maiden's Tower", Description: "Live the tale of the princess locked in a tower to escape a serpent's prophecy."},
			{Name: "Nasreddin Hodja", Description: "Share the adventures of Anatolia's wise and witty storyteller."},
			{Name: "Tepegoz", Description: "Stand with Basat against the one-eyed giant of the Dede Korkut tales."},
		},
	},
	{
		Name: "Science Fiction and Fantasy",
		Legends: []Legend{
			{Name: "The Fall of Atlantis", Description: "Explore the secrets of Atlantis before it sinks beneath the waves."},
			{Name: "The Lord of the Rings", Description: "Destroy the One Ring to save Middle-earth from Sauron."},
			{Name: "Stalker: The Zone", Description: "Search the anomalies and strange artifacts of the Zone."},
		},
	},
	{
		Name: "Historical and Folklore",
		Legends: []Legend{
			{Name: "King Arthur and the Round Table", Description: "Find Excalibur and unite the kingdom as the king of Camelot."},
			{Name: "Robin Hood", Description: "Rob the rich to feed the poor as an outlaw of Sherwood Forest."},
			{Name: "The Search for El Dorado", Description: "Seek the lost city of gold deep in the Amazon."},
			{Name: "The Last Days of Cleopatra", Description: "Wage a political war against Rome as Egypt's last queen."},
			{Name: "Pirates of the Caribbean", Description: "Sail with Blackbeard or Calico Jack in search of plunder."},
			{Name: "The Way of the Samurai", Description: "Guard your honour as a samurai or ronin in feudal Japan."},
		},
	},
}

// Legends returns the legend catalogue. The result is a copy.
func Legends() []LegendCategory {
	out := make([]LegendCategory, len(legends))
	for i, c := range legends {
		out[i] = LegendCategory{Name: c.Name, Legends: append([]Legend(nil), c.Legends...)}
	}
	return out
}

// FindLegend looks a legend up by name, ignoring case and surrounding space.
func FindLegend(name string) (Legend, bool) {
	name = strings.TrimSpace(name)
	for _, c := range legends {
		for _, l := range c.Legends {
			if strings.EqualFold(l.Name, name) {
				return l, true
			}
		}
	}
	return Legend{}, false
}
