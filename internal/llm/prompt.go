package llm

import (
	"strings"

	"github.com/azamon/support-chat/internal/conversation"
)

// DefaultHistoryWindow is the number of trailing history messages included
// in the prompt. Older turns are dropped; the model never sees them.
const DefaultHistoryWindow = 10

// systemPrompt frames the model as the store's support agent. The FAQ block
// below is the only product knowledge the model is given.
const systemPrompt = `You are a helpful customer support agent for "Azamon", a small e-commerce store selling electronics and gadgets.

Your role:
- Answer customer questions clearly and concisely
- Be friendly, professional, and helpful
- Use the store information provided below to answer questions
- If you don't know something, be honest and offer to connect them with a human agent
- Keep responses brief (2-3 sentences when possible)

Store Information:
` + faqKnowledge

const faqKnowledge = `
SHIPPING POLICY:
- We offer FREE standard shipping on orders over $50
- Standard shipping (5-7 business days): $5.99
- Express shipping (2-3 business days): $14.99
- Overnight shipping (1 business day): $29.99
- We ship to all 50 US states and internationally to select countries
- Orders are processed within 1-2 business days
- Tracking information is provided via email once shipped

RETURN & REFUND POLICY:
- 30-day return window from delivery date
- Items must be in original condition with all packaging
- Free returns for defective or damaged items
- Refunds processed within 5-7 business days after we receive the return
- Original shipping costs are non-refundable (except for defective items)
- To initiate a return, email support@azamon.com with your order number

SUPPORT HOURS:
- Live chat: Monday-Friday 9am-6pm EST
- Email support: 24/7 (responses within 24 hours)
- Phone support: Monday-Friday 9am-5pm EST at 1-800-TECH-HELP

PAYMENT METHODS:
- We accept Visa, Mastercard, American Express, Discover
- PayPal and Apple Pay also accepted
- All transactions are secure and encrypted

WARRANTY:
- All products come with manufacturer warranty
- Extended warranty available for purchase at checkout
- Warranty claims should be directed to support@azamstore.com
`

// buildPrompt assembles the full prompt: system framing, the last window
// turns of history rendered as a labeled transcript, and the new customer
// message left open for the agent's reply.
func buildPrompt(history []conversation.Message, userMessage string, window int) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nPrevious conversation:\n")
	b.WriteString(buildConversationContext(history, window))
	b.WriteString("\n\nCustomer: ")
	b.WriteString(userMessage)
	b.WriteString("\n\nSupport Agent:")
	return b.String()
}

// buildConversationContext renders the trailing history as "Customer:" and
// "Support Agent:" lines. Unknown senders render as the agent, matching the
// sender fallback in the store.
func buildConversationContext(history []conversation.Message, window int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}

	lines := make([]string, 0, len(history))
	for _, msg := range history {
		role := "Support Agent"
		if msg.Sender == conversation.SenderUser {
			role = "Customer"
		}
		lines = append(lines, role+": "+msg.Text)
	}
	return strings.Join(lines, "\n")
}
