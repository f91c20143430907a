package messages

import (
	"fmt"
	"strings"

	"github.com/rocketwin/funnel-bot/internal/i18n"
)

const ParseModeMarkdown = "Markdown"

const ServiceURL = "https://www.example.com"

func Welcome(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "नमस्ते! हम एक रोमांचक गेमिंग सेवा हैं। क्या आपको हमारी सेवा चाहिए?"
	}
	return "Hello! We are an exciting gaming service. Do you need our service?"
}

func PlayedBeforeQuestion(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "बहुत बढ़िया! क्या आपने पहले हमारा गेम खेला है?"
	}
	return "Great! Have you played our game before?"
}

func AskUserID(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "शानदार! प्रक्रिया पूरी करने के लिए मुझे अपना 9 अंकों का User ID भेजें।"
	}
	return "Awesome! Please send me your 9-digit User ID to complete the process."
}

func UserIDAccepted(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "धन्यवाद! आपका रजिस्ट्रेशन सफल रहा।"
	}
	return "Thank you! Your registration is successful."
}

func UserIDInvalid(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "यह ID सही नहीं लगती। यह 9 अंकों की संख्या होनी चाहिए। कृपया फिर से भेजें।"
	}
	return "The ID seems invalid. It must be a 9-digit number. Please try again."
}

func SmallTalkExhausted(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "आज के लिए हमारी चैट यहीं तक! गेम में मिलते हैं। 🎮"
	}
	return "That's all the chatting I can do for now! See you in the game. 🎮"
}

func RegistrationReminder(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "नमस्ते! क्या आपने रजिस्ट्रेशन पूरा कर लिया? तैयार हों तो मुझे बताएं।"
	}
	return "Hi! Have you completed the registration? Let me know if you are ready."
}

func ClassifierUnavailable(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "माफ़ कीजिए, मैं समझ नहीं पाया। कृपया थोड़ी देर बाद फिर कोशिश करें।"
	}
	return "Sorry, I couldn't understand that. Please try again later."
}

func ClassifierQuotaExhausted(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "माफ़ कीजिए, आज की मुफ्त सीमा समाप्त हो गई है। कृपया कल फिर कोशिश करें।"
	}
	return "Sorry, the free call quota for today has been used up. Please try again tomorrow."
}

func ServiceLink(lang i18n.Lang) string {
	if lang == i18n.HI {
		return fmt.Sprintf("लॉन्च से 30 सेकंड पहले सूचना: [गेम में जाने के लिए यहां क्लिक करें](%s)", ServiceURL)
	}
	return fmt.Sprintf("30s pre-launch alert: [click here to enter the game](%s)", ServiceURL)
}

func StrategyPrompt(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "अपनी रणनीति चुनें:"
	}
	return "Please choose your strategy:"
}

func StrategyChosen(lang i18n.Lang, strategy string) string {
	if lang == i18n.HI {
		return fmt.Sprintf("आपने %s चुना है। शुभकामनाएं!", strategy)
	}
	return fmt.Sprintf("You picked %s. Good luck!", strategy)
}

func StrategyUnavailable(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "यह रणनीति अभी उपलब्ध नहीं है।"
	}
	return "This strategy is currently unavailable."
}

func RegistrationStepOne(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "**Step 1: Registration**\n\n1. हमारी bio में दिए लिंक पर क्लिक करें।\n2. अपनी जानकारी भरें।\n3. अपना ईमेल verify करें।"
	}
	return "**Step 1: Registration**\n\n1. Click the link in our bio.\n2. Fill in your details.\n3. Verify your email."
}

func RegistrationStepTwo(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "**Step 2: Recharge**\n\n1. 'Wallet' सेक्शन में जाएं।\n2. भुगतान का तरीका चुनें।\n3. भुगतान पूरा करें और खेलना शुरू करें!"
	}
	return "**Step 2: Recharge**\n\n1. Go to the 'Wallet' section.\n2. Choose your payment method.\n3. Complete the payment to start playing!"
}

func RegistrationFollowUp(lang i18n.Lang) string {
	if lang == i18n.HI {
		return "कृपया गाइड के अनुसार रजिस्टर करें। पूरा होने पर मुझे बताएं!"
	}
	return "Please follow the guide to register. Let me know when you are done!"
}

func BroadcastTeaser(lang i18n.Lang, multiplier string) string {
	if lang == i18n.HI {
		return fmt.Sprintf("30 सेकंड में %sx लॉन्च होने वाला है, जल्दी करें और अपना दांव लगाएं", multiplier)
	}
	return fmt.Sprintf("30s later, %sx is about to launch, hurry up and place your bets", multiplier)
}

// LeaderboardRow is one synthetic payout entry, highest payout first.
type LeaderboardRow struct {
	PseudoID string
	Payout   int
}

func Leaderboard(lang i18n.Lang, roundID, multiplier string, rows []LeaderboardRow) string {
	var sb strings.Builder
	if lang == i18n.HI {
		sb.WriteString("🎉 शर्त लाभ रैंकिंग 🎉\n")
		sb.WriteString(fmt.Sprintf("इस दौर का खेल नंबर: %s, विस्फोट बिंदु गुणक: %sx\n\n", roundID, multiplier))
	} else {
		sb.WriteString("🎉 Bet Profit Ranking 🎉\n")
		sb.WriteString(fmt.Sprintf("Round ID: %s, Multiplier: %sx\n\n", roundID, multiplier))
	}
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("👤user:%s  payout  💰%d\n", row.PseudoID, row.Payout))
	}
	return sb.String()
}
