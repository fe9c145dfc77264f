package flow

// BotName is the bot's public handle, used in the greeting.
const BotName = "@QaPollsBot"

// Questions is the fixed ordered question set. It is defined at startup
// and never mutated.
var Questions = []string{
	"1. Замечаю опечатки в текстах",
	"2. Люблю решать головоломки",
	"3. Многократно проверяю одно и то же",
	"4. Изучаю все функции новых приложений",
	"5. Интересуюсь IT и технологиями",
}

// Band maps a minimum score to a verdict message. Bands must be ordered by
// descending threshold; the last band should have threshold 0 so every
// score falls into some band.
type Band struct {
	Threshold int
	Message   string
}

// Bands holds the default verdict thresholds for a five-question run
// (score range 5–25).
var Bands = []Band{
	{Threshold: 20, Message: "Отлично! 🚀"},
	{Threshold: 15, Message: "Хорошо! 👍"},
	{Threshold: 0, Message: "Есть куда расти! 💪"},
}

// MainMenu is the reply keyboard shown outside of a survey run.
var MainMenu = [][]string{
	{"Начать тест 🚀", "О курсе ✨"},
	{"Помощь ❓"},
}

// AnswerKeyboard is the 1–5 reply keyboard shown for each question.
var AnswerKeyboard = [][]string{
	{"1 😞", "2 😐", "3 😊", "4 😃", "5 🤩"},
}

const (
	startButton = "Начать тест 🚀"
	aboutButton = "О курсе ✨"
	helpButton  = "Помощь ❓"

	invalidAnswerText = "Пожалуйста, выберите вариант от 1 до 5"
	cancelledText     = "Тест отменён"
	failureText       = "Произошла ошибка. Пожалуйста, попробуйте снова."

	aboutText = "✨ *Курс по тестированию* ✨\n\n" +
		"Профессиональное обучение с нуля до трудоустройства.\n\n" +
		"Подробнее: @Dmitrii_Fursa8"
)
