package dialog

import (
	"fmt"

	"github.com/irislabs/iris/internal/models"
)

// ReplyKind names one canned reply of the bilingual catalog. Render turns a
// kind into the channel-agnostic payloads for a language.
type ReplyKind string

const (
	ReplyNone                      ReplyKind = ""
	ReplyDefaultError              ReplyKind = "default_error"
	ReplyGreeting                  ReplyKind = "greeting"
	ReplyThanks                    ReplyKind = "thanks"
	ReplyStartOver                 ReplyKind = "start_over"
	ReplyNewReservation            ReplyKind = "new_reservation"
	ReplyNewReservationHotel       ReplyKind = "new_reservation_hotel"
	ReplyNewReservationFlight      ReplyKind = "new_reservation_flight"
	ReplyNewReservationFlightHotel ReplyKind = "new_reservation_flight_hotel"
	ReplyNewReservationTrip        ReplyKind = "new_reservation_trip"
	ReplyManageBooking             ReplyKind = "manage_booking"
	ReplyBookingOptions            ReplyKind = "booking_options"
	ReplyHowCanWeHelp              ReplyKind = "how_can_we_help"
	ReplyAskConfirmationNumber     ReplyKind = "ask_confirmation_number"
	ReplyAnythingElse              ReplyKind = "anything_else"
	ReplyAskAnotherRequest         ReplyKind = "ask_another_request"
	ReplyHaveQuestion              ReplyKind = "have_question"
	ReplyFlightQuestion            ReplyKind = "flight_question"
	ReplyFlightBaggage             ReplyKind = "flight_baggage"
	ReplyFlightCheckin             ReplyKind = "flight_checkin"
	ReplyFlightOther               ReplyKind = "flight_other"
	ReplyQuestionSolvedYes         ReplyKind = "question_solved_yes"
	ReplyQuestionSolvedNo          ReplyKind = "question_solved_no"
	ReplySelfServiceCancel         ReplyKind = "self_service_cancel"
	ReplySentRequest               ReplyKind = "sent_request"
	ReplyAskQuestionSolved         ReplyKind = "ask_question_solved"
)

const (
	urlHotels      = "https://destinia.com/hotels/es"
	urlFlights     = "https://vuelos.destinia.com/"
	urlTrips       = "https://destinia.com/viajes/"
	urlFlightHotel = "https://destinia.com/vuelo_mas_hotel/"
	urlFAQs        = "https://destinia.com/m/faqs"
	urlMyAccount   = "https://rebrand.ly/d42457"
	urlContact     = "https://res.destinia.com/contact/reservations"
)

func mainMenuEN(text string) models.Payload {
	return models.QuickRepliesPayload(text,
		"New reservation", "Manage a booking", "I have a question", "Start again")
}

func mainMenuES(text string) models.Payload {
	return models.QuickRepliesPayload(text,
		"Buscar ofertas", "Tengo una consulta", "Ayuda con mi reserva", "Empezar de nuevo")
}

func yesNo(text string, lang models.Language) models.Payload {
	if lang == models.LangEnglish {
		return models.QuickRepliesPayload(text, "Yes", "No")
	}
	return models.QuickRepliesPayload(text, "Si", "No")
}

// Render builds the payloads for a reply kind. The name is only used by the
// greeting; lang must be en or es.
func Render(kind ReplyKind, lang models.Language, name string) []models.Payload {
	en := lang == models.LangEnglish
	switch kind {
	case ReplyNone:
		return nil

	case ReplyDefaultError:
		if en {
			return []models.Payload{mainMenuEN("I'm sorry I can not solve this question, but I can help you with any of this options.")}
		}
		return []models.Payload{mainMenuES("No puedo resolver esa consulta pero te puedo ayudar con alguna de estas opciones")}

	case ReplyGreeting:
		if en {
			return []models.Payload{
				models.TextPayload(fmt.Sprintf("Hi %s, I'm Iris, your digital travel agent 🤖. I'm here to save you hours of research time and help you to manage your bookings!", name)),
				mainMenuEN("What can I do for you?"),
			}
		}
		return []models.Payload{
			models.TextPayload("¡Hola! Soy Iris, el asistente virtual de Destinia"),
			mainMenuES("Cuéntame, ¿qué necesitas?"),
		}

	case ReplyThanks:
		if en {
			return []models.Payload{
				models.TextPayload("Glad to help."),
				mainMenuEN("What can I do for you?"),
			}
		}
		return []models.Payload{
			models.TextPayload("Encantado de ayudar."),
			mainMenuES("Cuéntame, ¿qué necesitas?"),
		}

	case ReplyStartOver:
		if en {
			return []models.Payload{mainMenuEN("What can I do for you?")}
		}
		return []models.Payload{mainMenuES("Cuéntame, ¿qué necesitas?")}

	case ReplyNewReservation:
		if en {
			return []models.Payload{models.ChoicesPayload(
				"To get started just tell me what you're looking for",
				models.Button{Title: "Hotel", URL: urlHotels},
				models.Button{Title: "Flight", URL: urlFlights},
				models.Button{Title: "Flight+Hotel", URL: urlFlightHotel},
			)}
		}
		return []models.Payload{models.ListPayload(
			"¡Genial! Dime qué buscas, y encontraré para ti nuestras mejores ofertas",
			models.ListItem{Title: "Quiero un hotel", Subtitle: "Encuentra tu hotel al mejor precio, aquí", URL: urlHotels},
			models.ListItem{Title: "Quiero un vuelo", Subtitle: "Aquí tienes nuestras mejores ofertas de vuelos", URL: urlFlights},
			models.ListItem{Title: "Quiero un viaje", Subtitle: "El viaje de tus sueños, a tan sólo un clic", URL: urlTrips},
			models.ListItem{Title: "Quiero un vuelo + hotel", Subtitle: "Súper ofertas de vuelo+hotel aquí", URL: urlFlightHotel},
		)}

	case ReplyNewReservationHotel:
		if en {
			return []models.Payload{models.LinkPayload("Click here to find the best hotel deals", "Hotel", urlHotels)}
		}
		return []models.Payload{models.LinkPayload("Encuentra tu hotel al mejor precio, aquí", "Quiero un hotel", urlHotels)}

	case ReplyNewReservationFlight:
		if en {
			return []models.Payload{models.LinkPayload("Click here to book your flight at the best price", "Flight", urlFlights)}
		}
		return []models.Payload{models.LinkPayload("Aquí tienes nuestras mejores ofertas de vuelos", "Quiero un vuelo", urlFlights)}

	case ReplyNewReservationFlightHotel:
		if en {
			return []models.Payload{models.LinkPayload("Click here to find our best deals", "Flight+Hotel", urlFlightHotel)}
		}
		return []models.Payload{models.LinkPayload("Súper ofertas de vuelo+hotel aquí", "Quiero un vuelo + hotel", urlFlightHotel)}

	case ReplyNewReservationTrip:
		// Trip packages are a Spanish-market product.
		if en {
			return Render(ReplyDefaultError, lang, name)
		}
		return []models.Payload{models.LinkPayload("El viaje de tus sueños, a tan sólo un clic", "Quiero un viaje", urlTrips)}

	case ReplyManageBooking:
		if en {
			return []models.Payload{models.ChoicesPayload(
				"To get started, I need to know what kind of reservation you have",
				models.Button{Title: "Hotel", Data: string(models.TopicHotel)},
				models.Button{Title: "Flight", Data: string(models.TopicFlight)},
				models.Button{Title: "Flight+Hotel", Data: string(models.TopicFlightHotel)},
			)}
		}
		return []models.Payload{models.ChoicesPayload(
			"Para poder ayudarte necesito saber si tu reserva es de...",
			models.Button{Title: "Hotel", Data: string(models.TopicHotel)},
			models.Button{Title: "Vuelo", Data: string(models.TopicFlight)},
			models.Button{Title: "Vuelo + Hotel", Data: string(models.TopicFlightHotel)},
		)}

	case ReplyBookingOptions:
		if en {
			return []models.Payload{models.QuickRepliesPayload(
				"Please choose one of these options",
				"On spot assistance", "I have a question", "Make changes", "Cancellation", "Start again")}
		}
		return []models.Payload{models.QuickRepliesPayload(
			"¿Cómo te podemos ayudar?",
			"Incidencia urgente", "Tengo una consulta", "Modificación", "Cancelación", "Empezar de nuevo")}

	case ReplyHowCanWeHelp:
		if en {
			return []models.Payload{models.TextPayload("OK! tell me, how can we help?")}
		}
		return []models.Payload{models.TextPayload("Cuéntame qué necesitas")}

	case ReplyAskConfirmationNumber:
		if en {
			return []models.Payload{models.TextPayload("Ok. What's your confirmation number?")}
		}
		return []models.Payload{models.TextPayload("Ok. Dime tu número de reserva")}

	case ReplyAnythingElse:
		if en {
			return []models.Payload{yesNo("Anything else?", lang)}
		}
		return []models.Payload{yesNo("¿algo más que añadir?", lang)}

	case ReplyAskAnotherRequest:
		if en {
			return []models.Payload{yesNo("Do you have any other request?", lang)}
		}
		return []models.Payload{yesNo("¿tienes alguna otra petición?", lang)}

	case ReplyHaveQuestion:
		if en {
			return []models.Payload{models.LinkPayload(
				"Check our Help Center, you will find answers to the most common questions of our clients :)",
				"Help Center", urlFAQs)}
		}
		return []models.Payload{models.LinkPayload(
			"Échale un ojo a nuestro Centro de ayuda, aquí están las preguntas más frecuentes de nuestros clientes.",
			"Centro de ayuda", urlFAQs)}

	case ReplyFlightQuestion:
		if en {
			return Render(ReplyHaveQuestion, lang, name)
		}
		return []models.Payload{models.ChoicesPayload(
			"Necesito saber si tu pregunta es sobre...",
			models.Button{Title: "facturación online", Data: "facturación online"},
			models.Button{Title: "Equipaje", Data: "Equipaje"},
			models.Button{Title: "Otros", Data: "Otros"},
		)}

	case ReplyFlightBaggage:
		if en {
			return Render(ReplyDefaultError, lang, name)
		}
		return []models.Payload{models.TextPayload(
			"Durante el proceso de compra se indicará si el billete incluye o no el equipaje.")}

	case ReplyFlightCheckin:
		if en {
			return Render(ReplyDefaultError, lang, name)
		}
		return []models.Payload{models.TextPayload(
			"24-48h antes de la salida de tu vuelo te enviaremos un email con un enlace para hacer el check in online y toda la información que necesitas para hacerlo.")}

	case ReplyFlightOther:
		if en {
			return Render(ReplyDefaultError, lang, name)
		}
		return Render(ReplyHaveQuestion, lang, name)

	case ReplyQuestionSolvedYes:
		if en {
			return []models.Payload{models.TextPayload("Great! Just let me know if there's something else that I can do for you :)")}
		}
		return []models.Payload{models.TextPayload("¡Genial! Si necesitas algo más sólo tienes que avisarme :)")}

	case ReplyQuestionSolvedNo:
		if en {
			return []models.Payload{models.LinkPayload(
				"Click here to send your question to a booking agent who will answer as soon as possible",
				"Contact Us", urlContact)}
		}
		return []models.Payload{models.LinkPayload(
			"Haz clic aquí para enviar tu consulta a un compañero que contestará a la mayor brevedad posible",
			"Contactar", urlContact)}

	case ReplySelfServiceCancel:
		if en {
			return []models.Payload{models.LinkPayload(
				"You can cancel your booking through your account in our website.",
				"My Account", urlMyAccount)}
		}
		return []models.Payload{models.LinkPayload(
			"Puedes cancelar tu reserva desde el apartado Mi cuenta en nuestra web",
			"Mi cuenta", urlMyAccount)}

	case ReplySentRequest:
		if en {
			return []models.Payload{models.TextPayload("I just sent your request to a booking agent that will reply you as soon as possible.")}
		}
		return []models.Payload{models.TextPayload("¡Genial! Ya he enviado tu solicitud. Si necesitas algo más sólo tienes que avisarme :)")}

	case ReplyAskQuestionSolved:
		if en {
			return []models.Payload{yesNo("Have been your question solved?", lang)}
		}
		return []models.Payload{yesNo("¿Has resuelto tu duda?", lang)}
	}
	return nil
}
