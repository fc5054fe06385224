package api

// Command is the closed set of slash commands the bot understands,
// resolved from the platform's numeric command id at the boundary.
type Command int

// Slash commands, in the order they are registered with the platform.
const (
	CommandNone Command = iota
	CommandNew
	CommandSnark
	CommandPoet
	CommandImage
	CommandAPIKey
	CommandStory
)

// CommandFromID maps a platform command id onto the enum. Unknown ids fall
// back to CommandNone, which routes like an ordinary message.
func CommandFromID(id int) Command {
	if id < int(CommandNew) || id > int(CommandStory) {
		return CommandNone
	}
	return Command(id)
}

// Persona guidance texts. Each persona command starts a fresh conversation
// seeded with its system message.
const (
	guidanceNew = "You are helpful assistant who has a cheerful attitude"

	guidanceSnark = "You are a snarky know-it-all that replies to any content " +
		"by telling the actual truth of the matter. You usually " +
		"start your reply with 'Actually...'"

	guidancePoet = "You are an esteemed poet that replies to any request " +
		"using a rhyming poem"
)

// Guidance returns the persona system-message text for chat persona
// commands, and "" for everything else.
func (c Command) Guidance() string {
	switch c {
	case CommandNew:
		return guidanceNew
	case CommandSnark:
		return guidanceSnark
	case CommandPoet:
		return guidancePoet
	default:
		return ""
	}
}

// String names the command for logs.
func (c Command) String() string {
	switch c {
	case CommandNew:
		return "/new"
	case CommandSnark:
		return "/snark"
	case CommandPoet:
		return "/poet"
	case CommandImage:
		return "/image"
	case CommandAPIKey:
		return "/api_key"
	case CommandStory:
		return "/story"
	default:
		return "none"
	}
}
