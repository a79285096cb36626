package dialogue

const (
	textWelcome        = "Добро пожаловать в цветочный магазин🌸. Выберите нужный раздел:"
	textChooseSection  = "Выберите нужный раздел:"
	textChooseCategory = "Выберите категорию:"
	textOrderCancelled = "Заказ отменён. Выберите нужный раздел:"

	textAbout = "Мы — студия флористики.\n" +
		"Собираем свежие букеты и доставляем их точно ко времени.\n\n" +
		"График работы: 09:00 - 21:00\n" +
		"Телефон: +7 (999) 000-00-00"

	textHelp = "Доступные команды:\n" +
		"/start - Открыть главное меню\n" +
		"/help - Показать эту справку\n\n" +
		"Чтобы оформить заказ, выберите букет в каталоге и нажмите «Оформить заказ»."

	textUnknownCommand = "Неизвестная команда. Пожалуйста, используйте /start для начала работы."
	textUseMenu        = "Я не понимаю это сообщение. Пожалуйста, используйте меню или /start."
	textDraftLost      = "Не удалось продолжить оформление заказа. Начните, пожалуйста, заново:"
	textInternalError  = "Ошибка при обработке запроса. Попробуйте ещё раз."

	textEmptyCategory   = "В этой категории пока нет товаров."
	textProductNotFound = "Этот товар больше недоступен."
	textUnknownProduct  = "Неизвестный товар"

	textAskPhone   = "Пожалуйста, введите ваш номер телефона:"
	textAskAddress = "Введите адрес доставки:"
	textAskDate    = "Введите желаемую дату доставки (например, 01.03.2026):"

	textInvalidPhone   = "❌ Пожалуйста, введите корректный номер телефона с кодом страны (например, +79161234567)."
	textInvalidAddress = "❌ Адрес слишком короткий. Укажите улицу и дом."
	textInvalidDate    = "❌ Пожалуйста, укажите дату доставки, например 01.03.2026."

	textConfirmWithButtons = "Пожалуйста, подтвердите или отмените заказ кнопками ниже."
	textOrderFailed        = "Не удалось оформить заказ. Попробуйте ещё раз."

	textDenied           = "Недостаточно прав."
	textOrderMissing     = "Заказ не найден."
	textOrderMarkedDone  = "Заказ отмечен как выполненный."
	textCompletionMarker = "✅ Заказ выполнен."
)
