package session

import (
	"fmt"
	"strings"

	"mindtriage/internal/core"
	"mindtriage/internal/scoring"
)

const (
	welcomeMessage = `Welcome to the mental health screening assistant.

***We'll start with a conversation about how you have been feeling. Depending on what you share, I may ask you to complete one or more standardized questionnaires, and finally I'll write a report summarizing what we found.***

***This is not a substitute for professional medical advice, diagnosis or treatment. If you are experiencing a mental health emergency, please contact emergency services or a crisis helpline immediately.***`

	greetingMessage = "Hi, I'm the screening assistant. How are you feeling today?"

	screeningAck = "Thank you for sharing your experiences with me. Based on what you've told me, I have a better understanding of your situation."

	normalMessage = "Based on our conversation, you seem to be doing well. If anything is troubling you, please speak with a healthcare provider. Here is a report summarizing our conversation."

	unmatchedAdvisory = "Based on your responses, it's important to speak with a healthcare provider for a proper evaluation and a discussion of treatment options."

	assessmentIntro = "Based on our conversation, I'd like to go through the %s with you to better understand your symptoms. Please choose the option that fits best for each question."

	nextQuestionnaire = "I have another questionnaire for you: the %s. Please answer each question honestly."

	allQuestionnairesDone = "Thank you for completing all the questionnaires."

	reportReady = `You can now generate your report. It will include:
1. A summary of your results
2. What your scores mean
3. Recommendations for next steps
4. Information about seeking professional help`

	assessmentGuidance = "Please answer the current question by choosing one of the listed options. If you want to stop the questionnaire, you can start a new conversation."

	awaitingGuidance = "Your questionnaires are complete. Please generate your report to continue."

	generatingReport = "Generating your report..."

	followUpInvitation = `Your report is ready.

You can now:
1. Ask questions about your results
2. Learn more about mental health conditions
3. Talk through the recommendations
4. Ask about self-care strategies

What would you like to know more about?`

	authFailureMessage = "The assistant could not authenticate with the language model service, so this conversation cannot continue. Please check the service configuration and start a new conversation."
)

func apology(err error) string {
	return fmt.Sprintf("I'm sorry, something went wrong while preparing a reply (%v). Please send your message again.", err)
}

func questionLine(n int, question string) string {
	return fmt.Sprintf("Question %d: %s", n, question)
}

func answerLine(option string) string {
	return "My answer: " + option
}

func resultMessage(res scoring.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for completing the %s. Here are your results:\n\n", res.Name)
	for _, line := range res.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if recs := res.Recommendations(); len(recs) > 0 {
		b.WriteString("\n**Healthcare Recommendation:**\n")
		b.WriteString(strings.Join(recs, "\n"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(core.Disclaimer)
	return b.String()
}
