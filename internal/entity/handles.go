package entity

// Непрозрачные целочисленные идентификаторы, разрешаемые из строковых
// меток при старте сервера (см. LabelMap).

// BlockClass — класс блока (камень, воздух, ...)
type BlockClass uint32

// ActorClass — класс актора (игрок, снаряд, ...)
type ActorClass uint32

// ActorModel — модель актора, реплицируемая клиентам
type ActorModel uint32

// Effect — вид эффекта, накладываемого на актора
type Effect uint32

// EffectDiscriminant разделяет экземпляры одного эффекта на одном
// акторе (например, по актору-источнику)
type EffectDiscriminant uint64

// NoDiscriminant — дискриминант "единственного" экземпляра эффекта
const NoDiscriminant EffectDiscriminant = ^EffectDiscriminant(0)

// Action — вид действия, присылаемого клиентом
type Action uint32

// Dispatch — вид серверного уведомления, адресованного клиенту
type Dispatch uint32

// Update — идентификатор реплицируемого компонента в State-конверте
type Update uint32

// Script — дескриптор загруженного гостевого модуля
type Script uint32
