package services

import (
	"math/rand/v2"
	"sync/atomic"
)

// Joke is a holiday joke or riddle shown to families while they wait
type Joke struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Answer  string `json:"answer,omitempty"`
}

var jokes = []Joke{
	{ID: "1", Type: "joke", Content: "What do you call a snowman with a suntan?", Answer: "A puddle!"},
	{ID: "2", Type: "joke", Content: "What do reindeer say before telling a joke?", Answer: "This one will sleigh you!"},
	{ID: "3", Type: "joke", Content: "Why did Santa go to music school?", Answer: "Because he wanted to improve his wrap sheet!"},
	{ID: "4", Type: "joke", Content: "What do you get when you cross a snowman with a vampire?", Answer: "Frostbite!"},
	{ID: "5", Type: "joke", Content: "Why does Santa have three gardens?", Answer: "So he can ho-ho-ho!"},
	{ID: "6", Type: "joke", Content: "What do elves learn in school?", Answer: "The elf-abet!"},
	{ID: "7", Type: "joke", Content: "What's Santa's favorite type of music?", Answer: "Wrap music!"},
	{ID: "8", Type: "joke", Content: "Why did the gingerbread man go to the doctor?", Answer: "Because he was feeling crumbly!"},
	{ID: "9", Type: "riddle", Content: "I fall from the sky, but I'm not rain. I'm white and fluffy, but I'm not a cloud. What am I?", Answer: "Snow!"},
	{ID: "10", Type: "riddle", Content: "I have a red suit and a white beard. I travel the world in one night. Who am I?", Answer: "Santa Claus!"},
	{ID: "11", Type: "riddle", Content: "I'm hung by the chimney with care. I'm filled with presents, but I'm not a stocking. What am I?", Answer: "A Christmas stocking!"},
	{ID: "12", Type: "riddle", Content: "I have branches but no leaves. I'm decorated with lights and ornaments. What am I?", Answer: "A Christmas tree!"},
	{ID: "13", Type: "riddle", Content: "I'm pulled by reindeer through the sky. I carry presents for all the good children. What am I?", Answer: "Santa's sleigh!"},
	{ID: "14", Type: "riddle", Content: "I'm round and jolly, made of snow. I have a carrot nose and coal eyes. What am I?", Answer: "A snowman!"},
	{ID: "15", Type: "riddle", Content: "I'm a helper who makes toys. I wear pointy shoes and a green hat. Who am I?", Answer: "An elf!"},
	{ID: "16", Type: "riddle", Content: "I'm a sweet treat that's shaped like a person. I'm made of gingerbread. What am I?", Answer: "A gingerbread man!"},
}

// JokeRotator hands out jokes. The rotation cursor is shared by every caller
// of the process and starts over on restart.
type JokeRotator struct {
	cursor atomic.Uint64
}

// NewJokeRotator creates a rotator starting at the first joke
func NewJokeRotator() *JokeRotator {
	return &JokeRotator{}
}

// Random returns a random joke
func (r *JokeRotator) Random() Joke {
	return jokes[rand.IntN(len(jokes))]
}

// Next returns the next joke in rotation
func (r *JokeRotator) Next() Joke {
	n := r.cursor.Add(1) - 1
	return jokes[n%uint64(len(jokes))]
}

// All returns every joke
func (r *JokeRotator) All() []Joke {
	return append([]Joke(nil), jokes...)
}
