package bot

import "fmt"

// Тексты, которые видит пользователь
const (
	textInvalidLink         = "Please send a valid video link from YouTube, Instagram, TikTok, Pinterest, LinkedIn or X."
	textNotActivatedUser    = "This bot is not activated for you yet. An administrator has been notified, you will get a message once access is granted."
	textNotActivatedGroup   = "This bot is not activated for your group yet. An administrator has been notified."
	textActivated           = "Your chat has been activated! Send me a video link."
	textConfirmDownload     = "Do you want me to download this video?"
	textDownloading         = "Video is being downloaded, please wait..."
	textCaption             = "Here is your video!"
	textCannotDownload      = "Sorry, I cannot download this video."
	textTooLarge            = "Error: The video file is too large to send via Telegram (over 50MB)."
	textGenericError        = "An error occurred while processing your request. Please try again later."
	textRateLimited         = "You are sending messages too often. Please wait a moment."
	textPromptGone          = "This request is no longer active."
	textNotYourPrompt       = "Only the sender of the link can answer."
	textInlineInvalidTitle  = "Invalid link"
	textInlineInvalid       = "Please provide a valid video link from YouTube, Instagram, TikTok, Pinterest, LinkedIn or X."
	textInlineInactiveTitle = "Not activated"
	textInlineInactive      = "This bot is not activated for you yet. Open a private chat with the bot to request access."
	textInlineTooLargeTitle = "Error: Video too large"
	textInlineTooLarge      = "Error: The video file exceeds 50MB and cannot be sent via Telegram."
	textInlineErrorTitle    = "Error"
	textInlineHelper        = "Video for inline query"
	textInlineResultTitle   = "Here is your video"
)

func greeting(username string) string {
	return fmt.Sprintf(
		"I can download videos from YouTube, Instagram, TikTok, Pinterest, LinkedIn and X. "+
			"Send me a link directly or mention me in any other chat using inline mode (@%s).",
		username,
	)
}
