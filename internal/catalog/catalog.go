// Package catalog renders the outbound WhatsApp texts.
package catalog

import (
	"fmt"
	"strings"

	"github.com/wolfman30/wellness-commerce-bot/internal/config"
)

// Catalog renders messages with the configured product links.
type Catalog struct {
	links config.ProductLinks
}

func New(links config.ProductLinks) *Catalog {
	return &Catalog{links: links}
}

// Links exposes the configured product links.
func (c *Catalog) Links() config.ProductLinks {
	return c.links
}

// TherapyPurchase thanks a therapy buyer and lists open slots.
func (c *Catalog) TherapyPurchase(name string, slots []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s, gracias por agendar tu terapia 🧘‍♀️✨\n\n", name)
	if len(slots) == 0 {
		b.WriteString("En este momento no pudimos consultar la agenda. Te escribiremos en breve con los horarios disponibles.")
		return b.String()
	}
	b.WriteString("Estos son los horarios disponibles:\n")
	for _, s := range slots {
		fmt.Fprintf(&b, "🕒 %s\n", s)
	}
	b.WriteString("\nResponde con el horario que prefieras para reservarlo.")
	return b.String()
}

// EbookGift thanks a non-therapy buyer and sends the e-book link.
func (c *Catalog) EbookGift(name string) string {
	return fmt.Sprintf("Hola %s, gracias por tu compra 🛍️✨\n\n"+
		"Te obsequiamos un e-book: 📘 \"El libro de la sabiduría\".\n"+
		"Descárgalo aquí:\n%s", name, c.links.Ebook)
}

// FreeSlots lists the Friday/Saturday slots offered for free.
func (c *Catalog) FreeSlots(slots []string) string {
	var b strings.Builder
	b.WriteString("Estos son los horarios gratuitos disponibles (viernes y sábado):\n")
	for _, s := range slots {
		fmt.Fprintf(&b, "• %s\n", s)
	}
	b.WriteString("\nResponde con el horario que elijas para confirmar tu cita gratuita.")
	return b.String()
}

func (c *Catalog) NoFreeSlots() string {
	return "En este momento no hay disponibilidad gratuita para viernes o sábado.\n" +
		"Te avisaré cuando haya un espacio disponible. ¡Gracias por tu paciencia!"
}

func (c *Catalog) CalendarUnavailable() string {
	return "No pudimos consultar la agenda en este momento. Por favor intenta de nuevo en unos minutos."
}

// AskCondition asks for the reason of the visit before committing slot.
func (c *Catalog) AskCondition(slot string) string {
	return fmt.Sprintf("Perfecto, apartamos el horario %s para tu consulta gratuita. 🙏\n\n"+
		"Para completar la reserva, cuéntanos brevemente qué enfermedad o padecimiento quieres tratar.", slot)
}

func (c *Catalog) BookingConfirmed(slot string) string {
	return fmt.Sprintf("Tu consulta gratuita ha sido agendada para %s. ¡Nos vemos pronto!", slot)
}

func (c *Catalog) BookingFailed(slot string) string {
	return fmt.Sprintf("No pudimos agendar el horario %s. Por favor responde de nuevo con el padecimiento para reintentar, "+
		"o elige otro horario.", slot)
}

// TherapyInfo is the bundle sent when a user asks about a consultation.
func (c *Catalog) TherapyInfo() string {
	return "¿Sufres alguna enfermedad o padecimiento que quieras erradicar? Toma una consulta.\n\n" +
		fmt.Sprintf("🌐 Adquiérela aquí (cupón %s):\n%s\n\n", c.links.Coupon, c.links.TherapyPackage) +
		fmt.Sprintf("📺 Para que veas el método que te va a devolver la salud, mira este video:\n%s\n\n", c.links.MethodVideo) +
		fmt.Sprintf("🌀 El tratamiento se explica en este otro video:\n%s\n\n", c.links.TreatmentVideo) +
		"— O —\n" +
		"¿Quizás te gustaría aprender Medicina Cuántica de Quinta Dimensión y tener acceso al contenido premium?\n" +
		c.links.Course + "\n\n" +
		"También te recomiendo el libro ‘El Método’ para entender todo en detalle:\n" +
		c.links.Book
}

// Reminder is sent one hour after TherapyInfo if the user stayed silent.
func (c *Catalog) Reminder() string {
	return "¿Viste los videos y estás listo para agendar tu terapia? 🌀\n\n" +
		fmt.Sprintf("Puedes reservar tu sesión de 50 minutos aquí (con cupón \"%s\" para un descuento especial):\n", c.links.Coupon) +
		c.links.SingleSession + "\n\n" +
		"¡No dudes más, estás a punto de sanar! 🌟"
}

// NoConversion offers the free Friday/Saturday consultation.
func (c *Catalog) NoConversion() string {
	return "Tratamos de que la terapia sea accesible para todos. " +
		"Si no tienes posibilidades económicas para pagar la consulta, " +
		"solo si al pagar sacrificarías tu sustento, con gusto te ofrecemos " +
		"citas gratuitas los viernes y sábados (según disponibilidad).\n\n" +
		"Además, mira estos videos para entender mejor el servicio antes de decidir:\n" +
		fmt.Sprintf("• Método: %s\n", c.links.MethodVideo) +
		fmt.Sprintf("• Tratamiento: %s\n\n", c.links.TreatmentVideo) +
		"¿Le gustaría tomar gratis una consulta?"
}

func (c *Catalog) Day6() string {
	return "Hola, espero estés disfrutando de \"El libro de la sabiduría\" 📘✨\n\n" +
		"Si te ha parecido fascinante, te invito a que adquieras \"El Método\", la novela que explica la cura " +
		"y la sanación a todas las enfermedades. El texto médico más avanzado del siglo XXI.\n" +
		c.links.Book
}

func (c *Catalog) Day7() string {
	return "📹 Si lo tuyo no es leer, te recomiendo tomes el curso basado en el libro \"El Método\".\n\n" +
		"Explicaremos cada técnica de sanación para cada enfermedad y regeneración celular contra el envejecimiento, " +
		"con videos didácticos. ¡No dejes pasar esta oportunidad!\n" +
		c.links.Course
}

// PurchaseGuide walks the user through buying a session on the store.
func (c *Catalog) PurchaseGuide() string {
	return "¡Excelente decisión! 🙌 Así puedes adquirir tu terapia:\n\n" +
		fmt.Sprintf("1. Entra aquí: %s\n", c.links.TherapyPackage) +
		"2. Presiona \"Añadir al carrito\" y luego \"Finalizar compra\".\n" +
		fmt.Sprintf("3. Escribe el cupón \"%s\" para tu descuento.\n", c.links.Coupon) +
		"4. Completa tus datos con el mismo número de WhatsApp.\n\n" +
		"Al confirmar el pago te enviaremos por aquí los horarios disponibles."
}

func (c *Catalog) MethodInfo() string {
	return "📘 \"El Método\" explica la cura y la sanación a toda enfermedad.\n" +
		"Consíguelo aquí: " + c.links.Book + "\n\n" +
		"Mira cómo funciona en este video: " + c.links.MethodVideo
}

func (c *Catalog) CourseInfo() string {
	return "🎓 Aprende Medicina Cuántica de Quinta Dimensión con nuestro curso en línea y accede al contenido premium:\n" +
		c.links.Course
}

// PriceRule answers price questions without the AI responder.
func (c *Catalog) PriceRule() string {
	return fmt.Sprintf("Nuestro tratamiento de 3 sesiones está disponible con el cupón '%s' en: %s",
		c.links.Coupon, c.links.TherapyPackage)
}

func (c *Catalog) HowItWorksRule() string {
	return "Nuestros métodos siguen un protocolo cuántico y científico. " +
		"Mira esto para entender cómo devolverá tu salud: " + c.links.MethodVideo
}

func (c *Catalog) Greeting() string {
	return "¡Buen día! Somos AvatarM Exchange, clínica de sanación cuántica. ¿En qué puedo ayudarte hoy?"
}

// SalesPrompt is the system prompt for the AI responder.
func (c *Catalog) SalesPrompt() string {
	return "Eres un asistente de ventas de AvatarM Exchange, una clínica de sanación cuántica. " +
		"Responde de manera empática, científica y guía al usuario hacia la conversión (venta de terapia o curso). " +
		"Máximo 120 palabras.\n" +
		"- Terapia 3 sesiones: " + c.links.TherapyPackage + "\n" +
		"- Terapia individual: " + c.links.SingleSession + "\n" +
		"- Libro El Método: " + c.links.Book + "\n" +
		"- Curso online: " + c.links.Course + "\n" +
		"- Videos IG: " + c.links.MethodVideo + " y " + c.links.TreatmentVideo + "\n"
}

// OwnerOrder announces a storefront order to subscribers.
func (c *Catalog) OwnerOrder(name, phone string, items []string) string {
	return fmt.Sprintf("🛒 Nuevo pedido de %s (%s): %s", name, phone, strings.Join(items, ", "))
}

// OwnerBooking announces a committed booking to subscribers.
func (c *Catalog) OwnerBooking(userID, slot string, free bool, note string) string {
	kind := "pagada"
	if free {
		kind = "gratuita"
	}
	return fmt.Sprintf("📅 Cita %s agendada: %s para %s. Motivo: %s", kind, slot, userID, note)
}
