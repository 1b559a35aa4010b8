package accounts

import (
	"fmt"
	"math/rand/v2"
)

var nicknameAdjectives = []string{
	"clever", "swift", "brave", "quiet", "mighty", "bright", "calm", "eager",
	"gentle", "happy", "jolly", "keen", "lucky", "noble", "proud", "witty",
}

var nicknameAnimals = []string{
	"panda", "fox", "raccoon", "koala", "lion", "otter", "falcon", "badger",
	"heron", "lynx", "moose", "owl", "tiger", "walrus", "yak", "zebra",
}

// GenerateNickname returns a random adjective_animal_number handle that
// satisfies the nickname rules.
func GenerateNickname() string {
	return fmt.Sprintf("%s_%s_%d",
		nicknameAdjectives[rand.IntN(len(nicknameAdjectives))],
		nicknameAnimals[rand.IntN(len(nicknameAnimals))],
		rand.IntN(1000),
	)
}
