package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	dataCmds
	scriptCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Viewing libprocess state and program variables", dataCmds},
	{"Scripting and configuration", scriptCmds},
	{"Other commands", otherCmds},
}
